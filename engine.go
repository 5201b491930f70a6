package staffauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/staffauth/internal/audit"
	"github.com/MrEthical07/staffauth/internal/flows"
	internalmetrics "github.com/MrEthical07/staffauth/internal/metrics"
	"github.com/MrEthical07/staffauth/jwt"
	"github.com/MrEthical07/staffauth/refresh"
)

// Engine issues, verifies and rotates staff credentials.
//
// Engine methods are safe for concurrent use after Build.
type Engine struct {
	config    Config
	signer    *jwt.Signer
	store     refresh.Store
	directory UserDirectory
	minter    flows.Minter
	deps      flows.Deps
	audit     *internalaudit.Dispatcher
	metrics   *internalmetrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Issue: flows.IssueDeps{
			Mint:  e.minter.Mint,
			Store: e.store,
		},
		Rotate: flows.RotateDeps{
			Decode:           e.signer.Decode,
			LookupIdentity:   e.lookupSubject,
			Admit:            e.admit,
			Mint:             e.minter.Mint,
			Store:            e.store,
			ExpiredErr:       jwt.ErrExpired,
			IdentityNotFound: ErrIdentityNotFound,
		},
		Authenticate: flows.AuthenticateDeps{
			Decode:           e.signer.Decode,
			LookupIdentity:   e.lookupSubject,
			ExpiredErr:       jwt.ErrExpired,
			IdentityNotFound: ErrIdentityNotFound,
		},
	}
}

// Close flushes pending audit events and releases the audit sink.
func (e *Engine) Close() error {
	if e == nil || e.audit == nil {
		return nil
	}
	return e.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Ping checks the refresh store.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Issue mints an access and refresh credential for id and records the
// refresh credential. If the record cannot be written Issue returns
// ErrStorage and no credentials.
func (e *Engine) Issue(ctx context.Context, id Identity) (CredentialPair, error) {
	return e.issue(ctx, id)
}

func (e *Engine) issue(ctx context.Context, id Identity) (CredentialPair, error) {
	if id.ID == "" {
		return CredentialPair{}, fmt.Errorf("%w: empty identity id", ErrIdentityNotFound)
	}
	result := flows.RunIssue(ctx, toSubject(id), e.deps.Issue)

	switch result.Failure {
	case flows.IssueFailureNone:
	case flows.IssueFailurePersist:
		e.metricInc(MetricIssueFailure)
		e.metricInc(MetricStorageError)
		e.logger.Error("refresh record write failed", zap.String("staff_id", id.ID), zap.Error(result.Err))
		err := fmt.Errorf("%w: %v", ErrStorage, result.Err)
		e.emitAudit(ctx, auditEventIssueFailure, false, id.ID, "", err, nil)
		return CredentialPair{}, err
	default:
		e.metricInc(MetricIssueFailure)
		e.logger.Error("credential signing failed", zap.String("staff_id", id.ID), zap.Error(result.Err))
		e.emitAudit(ctx, auditEventIssueFailure, false, id.ID, "", result.Err, nil)
		return CredentialPair{}, fmt.Errorf("issue credentials: %w", result.Err)
	}

	e.metricInc(MetricIssueSuccess)
	e.emitAudit(ctx, auditEventCredentialIssued, true, id.ID, result.Record.ID, nil, nil)
	return toPair(result.Pair), nil
}

// Login verifies a username and password against the directory and issues
// credentials. Unknown usernames and wrong passwords both yield
// ErrInvalidLogin.
func (e *Engine) Login(ctx context.Context, username, password string) (CredentialPair, error) {
	id, err := e.directory.VerifyPassword(ctx, username, password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		if !errors.Is(err, ErrInvalidLogin) {
			e.metricInc(MetricStorageError)
			e.logger.Error("directory password check failed", zap.Error(err))
			err = fmt.Errorf("%w: %v", ErrStorage, err)
		} else {
			err = ErrInvalidLogin
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"username": username}
		})
		return CredentialPair{}, err
	}

	if err := e.admit(toSubject(id)); err != nil {
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricStaffRejected)
		e.emitAudit(ctx, auditEventLoginFailure, false, id.ID, "", err, nil)
		return CredentialPair{}, err
	}

	pair, err := e.issue(ctx, id)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, id.ID, "", err, nil)
		return CredentialPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, id.ID, "", nil, nil)
	return pair, nil
}

// Authenticate verifies an access token and resolves its identity.
//
// An empty token is ErrMissingCredential. A token at or past its expiry is
// ErrExpiredCredential. A refresh token, a bad signature, or an unparsable
// string is ErrMalformedCredential. A subject the directory no longer knows
// is ErrIdentityNotFound.
func (e *Engine) Authenticate(ctx context.Context, token string) (Identity, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}

	result := flows.RunAuthenticate(ctx, token, e.deps.Authenticate)

	var err error
	switch result.Failure {
	case flows.AuthenticateFailureNone:
		e.metricInc(MetricAccessAdmitted)
		return fromSubject(result.Subject), nil
	case flows.AuthenticateFailureMissing:
		err = ErrMissingCredential
	case flows.AuthenticateFailureExpired:
		e.metricInc(MetricAccessExpired)
		err = ErrExpiredCredential
	case flows.AuthenticateFailureMalformed:
		err = ErrMalformedCredential
	case flows.AuthenticateFailureIdentityNotFound:
		err = ErrIdentityNotFound
	default:
		e.metricInc(MetricStorageError)
		e.logger.Error("identity lookup failed", zap.String("staff_id", result.Subject.ID), zap.Error(result.Err))
		err = fmt.Errorf("%w: %v", ErrStorage, result.Err)
	}

	e.metricInc(MetricAccessRejected)
	e.emitAudit(ctx, auditEventAccessRejected, false, result.Subject.ID, "", err, nil)
	return Identity{}, err
}

// Rotate exchanges a refresh token for a new pair.
//
// The token must carry type "refresh" (else ErrWrongCredentialType). Its
// record must exist, belong to the token's subject and be live (else
// ErrRevokedOrReused). On success every refresh record of that subject is
// revoked and the new one recorded in a single store operation, so of two
// concurrent calls with the same token exactly one succeeds.
func (e *Engine) Rotate(ctx context.Context, token string) (CredentialPair, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricRotateLatency, time.Since(start)) }()
	}

	result := flows.RunRotate(ctx, token, e.deps.Rotate)
	staffID := result.Subject.ID

	switch result.Failure {
	case flows.RotateFailureNone:
	case flows.RotateFailureExpired:
		return e.rotateFailed(ctx, staffID, ErrExpiredCredential, MetricRefreshExpired)
	case flows.RotateFailureMalformed:
		return e.rotateFailed(ctx, staffID, ErrMalformedCredential, MetricRefreshFailure)
	case flows.RotateFailureWrongType:
		return e.rotateFailed(ctx, staffID, ErrWrongCredentialType, MetricRefreshWrongType)
	case flows.RotateFailureIdentityNotFound:
		return e.rotateFailed(ctx, staffID, ErrIdentityNotFound, MetricRefreshFailure)
	case flows.RotateFailurePolicy:
		return e.rotateFailed(ctx, staffID, result.Err, MetricStaffRejected)
	case flows.RotateFailureReuse:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.Warn("refresh credential rejected",
			zap.String("staff_id", staffID),
			zap.String("reason", result.Reason),
		)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, staffID, "", ErrRevokedOrReused, func() map[string]string {
			return map[string]string{"reason": result.Reason}
		})
		return CredentialPair{}, ErrRevokedOrReused
	case flows.RotateFailureLookup, flows.RotateFailureStore:
		e.metricInc(MetricStorageError)
		e.logger.Error("refresh rotation backend failure", zap.String("staff_id", staffID), zap.Error(result.Err))
		return e.rotateFailed(ctx, staffID, fmt.Errorf("%w: %v", ErrStorage, result.Err), MetricRefreshFailure)
	default:
		e.logger.Error("credential signing failed", zap.String("staff_id", staffID), zap.Error(result.Err))
		return e.rotateFailed(ctx, staffID, fmt.Errorf("rotate credentials: %w", result.Err), MetricRefreshFailure)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, staffID, result.Record.ID, nil, nil)
	return toPair(result.Pair), nil
}

func (e *Engine) rotateFailed(ctx context.Context, staffID string, err error, metric MetricID) (CredentialPair, error) {
	if metric != MetricRefreshFailure {
		e.metricInc(metric)
	}
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, staffID, "", err, nil)
	return CredentialPair{}, err
}

// RevokeAll revokes every live refresh credential of staffID and reports
// how many changed. A member with none is a no-op returning 0.
func (e *Engine) RevokeAll(ctx context.Context, staffID string) (int, error) {
	n, err := e.store.RevokeAllForOwner(ctx, staffID)
	if err != nil {
		e.metricInc(MetricStorageError)
		e.logger.Error("revoke all failed", zap.String("staff_id", staffID), zap.Error(err))
		err = fmt.Errorf("%w: %v", ErrStorage, err)
		e.emitAudit(ctx, auditEventLogoutAll, false, staffID, "", err, nil)
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, staffID, "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return n, nil
}

// RefreshChain lists every refresh record ever issued to staffID, oldest
// first, revoked ones included.
func (e *Engine) RefreshChain(ctx context.Context, staffID string) ([]RefreshEntry, error) {
	recs, err := e.store.ListForOwner(ctx, staffID)
	if err != nil {
		e.metricInc(MetricStorageError)
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	out := make([]RefreshEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, RefreshEntry{
			ID:        r.ID,
			Revoked:   r.Revoked,
			CreatedAt: r.CreatedAt.Unix(),
		})
	}
	return out, nil
}

func (e *Engine) lookupSubject(ctx context.Context, id string) (flows.Subject, error) {
	ident, err := e.directory.LookupIdentity(ctx, id)
	if err != nil {
		return flows.Subject{}, err
	}
	if ident.ID == "" {
		ident.ID = id
	}
	return toSubject(ident), nil
}

func (e *Engine) admit(s flows.Subject) error {
	if e.config.Issuance.RequireStaff && !s.Staff {
		return ErrStaffRequired
	}
	return nil
}

func toSubject(id Identity) flows.Subject {
	return flows.Subject{ID: id.ID, Username: id.Username, Staff: id.Staff}
}

func fromSubject(s flows.Subject) Identity {
	return Identity{ID: s.ID, Username: s.Username, Staff: s.Staff}
}

func toPair(p flows.Pair) CredentialPair {
	return CredentialPair{
		Access:  Credential{Token: p.AccessToken, ExpiresIn: p.AccessExpiresIn},
		Refresh: Credential{Token: p.RefreshToken, ExpiresIn: p.RefreshExpiresIn},
	}
}
