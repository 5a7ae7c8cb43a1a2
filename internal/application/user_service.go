package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/modu-mall/account-api/internal/domain/entity"
	repo "github.com/modu-mall/account-api/internal/domain/repository"
	"github.com/modu-mall/account-api/pkg/helpers"
	"github.com/modu-mall/account-api/pkg/mailer"
)

// Failure taxonomy. Handlers map each value to a status code; the service
// never recovers from one of these locally.
var (
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrUnknownEmail       = errors.New("no account registered for this email")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("password does not match")
	ErrPasswordNotSet     = errors.New("account has no password set")
)

// profileImgCount is the size of the stock profile-image pool.
const profileImgCount = 407

// randomProfileImg picks a stock image path at creation. Not unique across
// users, by contract; never recomputed on update.
func randomProfileImg() string {
	return fmt.Sprintf("profileImg/%d.jpg", rand.IntN(profileImgCount)+1)
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Service orchestrates the repository, hasher and token issuer for every
// account operation. All collaborators are injected; Redis, ES and the
// publisher are optional and skipped when nil.
type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Pub          *helpers.RabbitPublisher
	MailEnabled  bool
	GCS          *storage.Client
	GCSBucket    string
}

func NewService(repo repo.UserRepository, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, pub *helpers.RabbitPublisher, mailEnabled bool, gcs *storage.Client, gcsBucket string) *Service {
	return &Service{
		Repo:         repo,
		JWT:          jwt,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		Pub:          pub,
		MailEnabled:  mailEnabled,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
	}
}

type RegisterInput struct {
	Email    string
	FullName string
	Password string
}

type FederatedInput struct {
	Email         string
	FullName      string
	LoginTypeCode string
}

// AuthResult is what a successful login returns to the browser.
type AuthResult struct {
	Token      string    `json:"token"`
	IsAdmin    bool      `json:"is_admin"`
	UserID     string    `json:"user_id"`
	ProfileImg string    `json:"profile_img"`
	FullName   string    `json:"full_name"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Register creates a password account. The pre-check gives the friendly
// duplicate error; the unique index behind Repo.Create closes the race for
// concurrent registrations with the same email.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	if _, err := s.Repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &entity.User{
		Email:      in.Email,
		FullName:   in.FullName,
		Password:   hash,
		ProfileImg: randomProfileImg(),
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	s.indexUser(ctx, u)
	s.enqueueWelcomeMail(ctx, u)
	return u, nil
}

// LoginFederated signs in an account backed by a third-party provider,
// creating it on first sight. Idempotent on email: a second call finds the
// record created by the first and issues a token for it. The returned full
// name is always the stored one.
func (s *Service) LoginFederated(ctx context.Context, in FederatedInput) (*AuthResult, error) {
	u, err := s.Repo.GetByEmail(ctx, in.Email)
	if errors.Is(err, repo.ErrNotFound) {
		u = &entity.User{
			Email:         in.Email,
			FullName:      in.FullName,
			ProfileImg:    randomProfileImg(),
			LoginTypeCode: in.LoginTypeCode,
		}
		err = s.Repo.Create(ctx, u)
		if errors.Is(err, repo.ErrDuplicateEmail) {
			// Lost a race with a concurrent first login; use the winner.
			u, err = s.Repo.GetByEmail(ctx, in.Email)
		} else if err == nil {
			s.indexUser(ctx, u)
		}
	}
	if err != nil {
		return nil, err
	}
	return s.issueToken(ctx, u)
}

// Login authenticates a password account. Unknown email and wrong password
// are distinct failures so the form can tell the user which to fix.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnknownEmail
	}
	if err != nil {
		return nil, err
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(ctx, u)
}

// issueToken signs the claims and records a session in Redis so the auth
// middleware can reject tokens for sessions that no longer exist.
func (s *Service) issueToken(ctx context.Context, u *entity.User) (*AuthResult, error) {
	token, exp, err := s.JWT.Generate(u.ID, u.IsAdmin)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("token generation failed")
		}
		return nil, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"user_id":     u.ID,
			"email":       u.Email,
			"full_name":   u.FullName,
			"profile_img": u.ProfileImg,
			"is_admin":    strconv.FormatBool(u.IsAdmin),
			"created_at":  nowRFC3339(),
		})
		pipe.Expire(ctx, key, time.Until(exp))
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return &AuthResult{
		Token:      token,
		IsAdmin:    u.IsAdmin,
		UserID:     u.ID,
		ProfileImg: u.ProfileImg,
		FullName:   u.FullName,
		ExpiresAt:  exp,
	}, nil
}

// GetByEmail is a lookup passthrough; absence surfaces as ErrNotFound and
// the caller decides whether that is an error.
func (s *Service) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *Service) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return u, err
}

// ListAll returns every account. No pagination at this system's scale.
func (s *Service) ListAll(ctx context.Context) ([]*entity.User, error) {
	return s.Repo.GetAll(ctx)
}

// UpdateInput describes a partial profile update. Nil fields are untouched.
type UpdateInput struct {
	FullName    *string
	Password    *string
	PostalCode  *string
	Address1    *string
	Address2    *string
	PhoneNumber *string
}

// Update applies a shallow merge onto the stored record. A non-empty
// password is re-hashed before it is stored; an empty one is ignored.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*entity.User, error) {
	if _, err := s.Repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	fields := repo.UpdateFields{
		FullName:    in.FullName,
		PostalCode:  in.PostalCode,
		Address1:    in.Address1,
		Address2:    in.Address2,
		PhoneNumber: in.PhoneNumber,
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := helpers.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		fields.Password = &hash
	}

	u, err := s.Repo.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"full_name":  u.FullName,
			"updated_at": nowRFC3339(),
		})
		if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
			s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	s.indexUser(ctx, u)
	return u, nil
}

// DeleteSelf removes the caller's own account after re-verifying the
// password. Accounts that only ever logged in through a provider have no
// password to verify; they must set one first.
func (s *Service) DeleteSelf(ctx context.Context, id, password string) error {
	u, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !u.HasPassword() {
		return ErrPasswordNotSet
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return ErrInvalidCredentials
	}
	return s.removeUser(ctx, u)
}

// DeleteAdmin removes any account without a password check. The admin
// middleware has already confirmed the caller's role.
func (s *Service) DeleteAdmin(ctx context.Context, id string) error {
	u, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return s.removeUser(ctx, u)
}

func (s *Service) removeUser(ctx context.Context, u *entity.User) error {
	if err := s.Repo.Delete(ctx, u.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if s.Redis != nil {
		if err := s.Redis.Del(ctx, sessionKey(u.ID)).Err(); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("session delete failed")
		}
	}
	s.deindexUser(ctx, u.ID)
	return nil
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	doc := map[string]any{
		"id":          u.ID,
		"email":       u.Email,
		"full_name":   u.FullName,
		"profile_img": u.ProfileImg,
		"is_admin":    u.IsAdmin,
		"created_at":  u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

func (s *Service) deindexUser(ctx context.Context, id string) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	req := esapi.DeleteRequest{Index: s.ESUsersIndex, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", id).Warn("es delete failed")
		}
		return
	}
	_ = res.Body.Close()
}

func (s *Service) enqueueWelcomeMail(ctx context.Context, u *entity.User) {
	if s.Pub == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{
		To:      u.Email,
		Subject: "Welcome to Modu Mall",
		Text:    "Hi " + u.FullName + ", your account is ready. Happy shopping!",
		HTML:    "<p>Hi " + u.FullName + ",</p><p>your account is ready. Happy shopping!</p>",
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("welcome mail enqueue failed")
	}
}

// SearchUsers performs a simple multi_match search on email and full name.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "full_name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
