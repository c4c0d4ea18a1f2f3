package elevation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khanghh/konbase/internal/audit"
	"github.com/khanghh/konbase/internal/common"
	"github.com/khanghh/konbase/internal/users"
	"gorm.io/gorm"
)

// ErrElevationDenied is returned for every rejected elevation, whatever the
// reason, so callers cannot tell a wrong role from a wrong secret.
var ErrElevationDenied = errors.New("unauthorized: invalid security code or insufficient role")

type Notifier interface {
	NotifyRoleElevated(ctx context.Context, email string, role string) error
}

type Options struct {
	Secret   string
	FromRole string
	ToRole   string
}

type Result struct {
	Success bool
	Message string
}

// Gate moves a profile from the eligible role to the elevated role when the
// caller presents the shared elevation secret.
type Gate struct {
	db          *gorm.DB
	profileRepo users.ProfileRepository
	auditor     *audit.Recorder
	notifier    Notifier
	hashKey     string
	secret      string
	fromRole    string
	toRole      string
	now         func() time.Time
}

func (g *Gate) Elevate(ctx context.Context, userID string, submittedSecret string) (*Result, error) {
	profile, err := g.profileRepo.GetByID(ctx, userID)
	if errors.Is(err, users.ErrProfileNotFound) {
		return nil, ErrElevationDenied
	}
	if err != nil {
		return nil, err
	}
	if profile.Role == g.toRole {
		return &Result{Success: true, Message: fmt.Sprintf("already %s", g.toRole)}, nil
	}

	// evaluate both checks before branching
	secretOK := common.SecretsEqual(g.hashKey, g.secret, submittedSecret)
	roleOK := profile.Role == g.fromRole
	if !secretOK || !roleOK {
		return nil, ErrElevationDenied
	}

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := g.profileRepo.WithTx(tx).UpdateRole(ctx, userID, g.fromRole, g.toRole)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrElevationDenied
		}
		return g.auditor.WithTx(tx).RecordElevation(ctx, audit.ElevationRecord{
			UserID:       userID,
			PreviousRole: g.fromRole,
			NewRole:      g.toRole,
			ElevatedAt:   g.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	if profile.Email != "" {
		if err := g.notifier.NotifyRoleElevated(ctx, profile.Email, g.toRole); err != nil {
			slog.Warn("Failed to send elevation notice", "userID", userID, "error", err)
		}
	}
	return &Result{Success: true, Message: fmt.Sprintf("role elevated to %s", g.toRole)}, nil
}

func NewGate(db *gorm.DB, profileRepo users.ProfileRepository, auditor *audit.Recorder, notifier Notifier, opts Options) (*Gate, error) {
	hashKey, err := common.GenerateSecret(32)
	if err != nil {
		return nil, err
	}
	return &Gate{
		db:          db,
		profileRepo: profileRepo,
		auditor:     auditor,
		notifier:    notifier,
		hashKey:     hashKey,
		secret:      opts.Secret,
		fromRole:    opts.FromRole,
		toRole:      opts.ToRole,
		now:         time.Now,
	}, nil
}
