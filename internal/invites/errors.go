package invites

import (
	"errors"
	"fmt"

	"github.com/taskboard/backend/internal/projects"
)

// ErrInvalidInvite is the parent of every redemption failure. Callers outside this package should
// only need to test for it; the wrapped sentinels below carry the precise cause for logging.
var ErrInvalidInvite = errors.New("invalid or expired invite")

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and unexpected algorithms.
	ErrInvalidToken = fmt.Errorf("%w: bad token", ErrInvalidInvite)
	// ErrExpired means the signature is valid but the embedded expiry has passed.
	ErrExpired = fmt.Errorf("%w: token expired", ErrInvalidInvite)
	// ErrProjectGone means the project the token names no longer exists.
	ErrProjectGone = fmt.Errorf("%w: %w", ErrInvalidInvite, projects.ErrNotFound)
	// ErrAlreadyMember means the redeeming user already belongs to the project.
	ErrAlreadyMember = fmt.Errorf("%w: %w", ErrInvalidInvite, projects.ErrAlreadyMember)
)
