// ABOUTME: Interface registry: CRUD plus secret issuance and rotation
// ABOUTME: Encrypts control tokens at rest and decrypts them on read

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/catapio/portim/internal/pathexpr"
	"github.com/catapio/portim/internal/secrets"
	"github.com/catapio/portim/internal/store"
)

// Validation errors
var (
	ErrEndpointNotHTTPS    = errors.New("endpoint must use https")
	ErrUnknownControl      = errors.New("control interface does not exist")
	ErrNameTooShort        = errors.New("name must have at least 3 characters")
	ErrMissingEventURL     = errors.New("event endpoint is required")
	ErrMissingExternalPath = errors.New("external id field is required")
)

// CreateInput carries the fields for registering a new interface.
type CreateInput struct {
	Name            string
	EventEndpoint   string
	ControlEndpoint string
	Control         *string
	ExternalIDField string
	AllowedIPs      []string
	ControlToken    string
}

// UpdateInput carries partial updates. Nil fields are left unchanged.
type UpdateInput struct {
	Name            *string
	EventEndpoint   *string
	ControlEndpoint *string
	Control         *string
	ExternalIDField *string
	AllowedIPs      []string
	ControlToken    *string
}

// Registry manages interface records and their credentials.
type Registry struct {
	interfaces store.InterfaceStore
	cipher     *secrets.Cipher
	logger     *slog.Logger
}

// New creates a Registry.
func New(interfaces store.InterfaceStore, cipher *secrets.Cipher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		interfaces: interfaces,
		cipher:     cipher,
		logger:     logger.With("component", "registry"),
	}
}

// Create registers an interface, issues its shared secret, and encrypts its
// control token if one was provided. The plaintext secret is returned once
// and never stored.
func (r *Registry) Create(ctx context.Context, projectID string, input CreateInput) (*store.Interface, string, error) {
	if err := r.validateCreate(ctx, input); err != nil {
		return nil, "", err
	}

	issued, err := secrets.Issue()
	if err != nil {
		return nil, "", fmt.Errorf("issuing secret: %w", err)
	}

	iface := &store.Interface{
		Name:            input.Name,
		ProjectID:       projectID,
		EventEndpoint:   input.EventEndpoint,
		ControlEndpoint: input.ControlEndpoint,
		Control:         input.Control,
		ExternalIDField: input.ExternalIDField,
		AllowedIPs:      input.AllowedIPs,
		SecretHash:      issued.Hash,
		SecretSalt:      issued.Salt,
	}

	if input.ControlToken != "" {
		ciphertext, iv, err := r.cipher.Encrypt(input.ControlToken)
		if err != nil {
			return nil, "", fmt.Errorf("encrypting control token: %w", err)
		}
		iface.SecretToken = ciphertext
		iface.IVToken = iv
	}

	if err := r.interfaces.CreateInterface(ctx, iface); err != nil {
		return nil, "", fmt.Errorf("creating interface: %w", err)
	}

	r.logger.Debug("created interface", "id", iface.ID, "name", iface.Name, "project_id", projectID)
	return iface, issued.Plaintext, nil
}

// Get fetches an interface with its control token decrypted for the caller.
func (r *Registry) Get(ctx context.Context, interfaceID string) (*store.Interface, error) {
	iface, err := r.interfaces.GetInterface(ctx, interfaceID)
	if err != nil {
		return nil, err
	}

	if iface.SecretToken != "" {
		token, err := r.cipher.Decrypt(iface.SecretToken, iface.IVToken)
		if err != nil {
			return nil, fmt.Errorf("decrypting control token: %w", err)
		}
		iface.SecretToken = token
	}

	return iface, nil
}

// Update merges the provided fields over the stored record. Omitted fields
// are unchanged; Control may be cleared by providing an empty string.
func (r *Registry) Update(ctx context.Context, interfaceID string, input UpdateInput) (*store.Interface, error) {
	iface, err := r.interfaces.GetInterface(ctx, interfaceID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		iface.Name = *input.Name
	}
	if input.EventEndpoint != nil {
		iface.EventEndpoint = *input.EventEndpoint
	}
	if input.ControlEndpoint != nil {
		iface.ControlEndpoint = *input.ControlEndpoint
	}
	if input.Control != nil {
		if *input.Control == "" {
			iface.Control = nil
		} else {
			if _, err := r.interfaces.GetInterface(ctx, *input.Control); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnknownControl, *input.Control)
			}
			iface.Control = input.Control
		}
	}
	if input.ExternalIDField != nil {
		iface.ExternalIDField = *input.ExternalIDField
	}
	if input.AllowedIPs != nil {
		iface.AllowedIPs = input.AllowedIPs
	}
	if input.ControlToken != nil {
		if *input.ControlToken == "" {
			iface.SecretToken = ""
			iface.IVToken = ""
		} else {
			ciphertext, iv, err := r.cipher.Encrypt(*input.ControlToken)
			if err != nil {
				return nil, fmt.Errorf("encrypting control token: %w", err)
			}
			iface.SecretToken = ciphertext
			iface.IVToken = iv
		}
	}

	if !pathexpr.Valid(iface.ExternalIDField) {
		return nil, fmt.Errorf("%w: %s", pathexpr.ErrInvalidPath, iface.ExternalIDField)
	}
	if err := validateEndpoints(iface.EventEndpoint, iface.ControlEndpoint); err != nil {
		return nil, err
	}

	if err := r.interfaces.UpdateInterface(ctx, iface); err != nil {
		return nil, fmt.Errorf("updating interface: %w", err)
	}

	r.logger.Debug("updated interface", "id", iface.ID)
	return iface, nil
}

// Delete removes an interface.
func (r *Registry) Delete(ctx context.Context, interfaceID string) error {
	return r.interfaces.DeleteInterface(ctx, interfaceID)
}

// RotateSecret issues a fresh secret, immediately invalidating the previous
// one, and re-encrypts the stored control token under a fresh IV. Returns
// the new plaintext secret once.
func (r *Registry) RotateSecret(ctx context.Context, interfaceID string) (string, error) {
	iface, err := r.interfaces.GetInterface(ctx, interfaceID)
	if err != nil {
		return "", err
	}

	issued, err := secrets.Issue()
	if err != nil {
		return "", fmt.Errorf("issuing secret: %w", err)
	}
	iface.SecretHash = issued.Hash
	iface.SecretSalt = issued.Salt

	if iface.SecretToken != "" {
		token, err := r.cipher.Decrypt(iface.SecretToken, iface.IVToken)
		if err != nil {
			return "", fmt.Errorf("decrypting control token: %w", err)
		}
		ciphertext, iv, err := r.cipher.Encrypt(token)
		if err != nil {
			return "", fmt.Errorf("re-encrypting control token: %w", err)
		}
		iface.SecretToken = ciphertext
		iface.IVToken = iv
	}

	if err := r.interfaces.UpdateInterface(ctx, iface); err != nil {
		return "", fmt.Errorf("updating interface: %w", err)
	}

	r.logger.Info("rotated interface secret", "id", iface.ID)
	return issued.Plaintext, nil
}

func (r *Registry) validateCreate(ctx context.Context, input CreateInput) error {
	if len(input.Name) < 3 {
		return ErrNameTooShort
	}
	if input.EventEndpoint == "" {
		return ErrMissingEventURL
	}
	if input.ExternalIDField == "" {
		return ErrMissingExternalPath
	}
	if !pathexpr.Valid(input.ExternalIDField) {
		return fmt.Errorf("%w: %s", pathexpr.ErrInvalidPath, input.ExternalIDField)
	}
	if err := validateEndpoints(input.EventEndpoint, input.ControlEndpoint); err != nil {
		return err
	}
	if input.Control != nil && *input.Control != "" {
		if _, err := r.interfaces.GetInterface(ctx, *input.Control); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownControl, *input.Control)
		}
	}
	return nil
}

func validateEndpoints(endpoints ...string) error {
	for _, endpoint := range endpoints {
		if endpoint == "" {
			continue
		}
		if !strings.HasPrefix(endpoint, "https://") {
			return fmt.Errorf("%w: %s", ErrEndpointNotHTTPS, endpoint)
		}
	}
	return nil
}
