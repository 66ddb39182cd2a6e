package principal

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"custodia/internal/audit"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
	"custodia/pkg/sentinel"
)

const defaultTokenTTL = time.Hour

// Claims are the JWT claims carried by an access token. Role travels with
// the token so the middleware can rebuild the principal without a directory
// read on every request.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service is the identity adapter: registration, credential verification,
// and token issue/validate.
type Service struct {
	store      Store
	recorder   *audit.Recorder
	runner     tx.Runner
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
}

// NewService wires the identity service.
func NewService(store Store, recorder *audit.Recorder, runner tx.Runner, signingKey, issuer string) *Service {
	return &Service{
		store:      store,
		recorder:   recorder,
		runner:     runner,
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   defaultTokenTTL,
	}
}

// Register adds a principal to the directory.
func (s *Service) Register(ctx context.Context, username, password string, role domain.Role) (Record, error) {
	if username == "" {
		return Record{}, dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if len(password) < 8 {
		return Record{}, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if !role.IsValid() {
		return Record{}, dErrors.Newf(dErrors.CodeValidation, "unknown role: %s", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	record := Record{
		ID:           domain.NewPrincipalID(),
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Record{}, dErrors.Newf(dErrors.CodeConflict, "username %q is taken", username)
		}
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert principal")
	}
	return record, nil
}

// Authenticate verifies a credential and returns a signed access token for
// the matching principal. Successful logins are audited.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, domain.Principal, error) {
	record, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Same error as a bad password; the directory is not probeable.
			return "", domain.Principal{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid credentials")
		}
		return "", domain.Principal{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up principal")
	}
	if err := bcrypt.CompareHashAndPassword(record.PasswordHash, []byte(password)); err != nil {
		return "", domain.Principal{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid credentials")
	}

	p := record.Principal()
	token, err := s.IssueToken(p)
	if err != nil {
		return "", domain.Principal{}, err
	}
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.recorder.Record(ctx, p, domain.AuditActionLogin, domain.ResourcePrincipal, p.ID.String(), map[string]string{
			"username": record.Username,
		})
		return err
	})
	if err != nil {
		return "", domain.Principal{}, err
	}
	return token, p, nil
}

// IssueToken signs an access token for the principal.
func (s *Service) IssueToken(p domain.Principal) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return signed, nil
}

// ValidateToken parses a token and rebuilds the principal it names.
func (s *Service) ValidateToken(tokenString string) (domain.Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, dErrors.New(dErrors.CodeUnauthenticated, "token has expired")
		}
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token")
	}
	id, err := domain.ParsePrincipalID(claims.Subject)
	if err != nil {
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token subject")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token role")
	}
	return domain.Principal{ID: id, Role: role}, nil
}
