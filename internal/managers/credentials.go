package managers

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/udovin/algo/futures"

	"github.com/leetsync/leetsync/internal/core"
	"github.com/leetsync/leetsync/internal/github"
	"github.com/leetsync/leetsync/internal/models"
)

// ErrAuthRequired means that daemon has no stored credential yet.
var ErrAuthRequired = errors.New("authentication required")

// ErrAuthInvalid means that stored credential was rejected by remote.
var ErrAuthInvalid = errors.New("authentication invalid")

const (
	securePrefix   = "secure:"
	secureTokenKey = securePrefix + "github.token"
	repoOwnerKey   = "repo.owner"
	repoNameKey    = "repo.name"
	repoBranchKey  = "repo.branch"
)

// checkTTL bounds amount of remote validations of unchanged token.
const checkTTL = 5 * time.Minute

// RepoConfig represents token-free sync target config.
type RepoConfig struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

// Configured reports whether config points to usable repository.
func (c RepoConfig) Configured() bool {
	return len(c.Owner) > 0 && len(c.Name) > 0
}

type tokenCheck struct {
	future futures.Future[string]
	time   time.Time
}

// CredentialsManager stores access token in two tiers.
//
// Memory tier is authoritative while daemon runs, durable tier keeps
// encrypted copy in settings to survive restarts.
type CredentialsManager struct {
	settings *models.SettingStore
	box      *SecretBox
	endpoint string
	mutex    sync.Mutex
	token    string
	checks   map[string]tokenCheck
}

// NewCredentialsManager returns new manager for access credentials.
func NewCredentialsManager(
	c *core.Core, box *SecretBox, endpoint string,
) *CredentialsManager {
	return &CredentialsManager{
		settings: c.Settings,
		box:      box,
		endpoint: endpoint,
		checks:   map[string]tokenCheck{},
	}
}

// Store validates token against remote and saves it in both tiers.
//
// Returns login of token owner on success.
func (m *CredentialsManager) Store(
	ctx context.Context, token string, config RepoConfig,
) (string, error) {
	login, err := m.checkToken(ctx, token).Get(ctx)
	if err != nil {
		return "", err
	}
	sealed, err := m.box.Seal(token)
	if err != nil {
		return "", err
	}
	if err := m.settings.SetByKey(ctx, secureTokenKey, sealed); err != nil {
		return "", err
	}
	if err := m.SetConfig(ctx, config); err != nil {
		return "", err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.token = token
	return login, nil
}

// GetToken returns validated access token.
//
// Token from durable tier is promoted to memory tier on first use
// after daemon restart. Corrupted durable record is dropped and
// reported as missing credential.
func (m *CredentialsManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.loadToken(ctx)
	if err != nil {
		return "", err
	}
	if _, err := m.checkToken(ctx, token).Get(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// ForceRefresh drops memory tier and cached validation result, then
// validates token restored from durable tier.
func (m *CredentialsManager) ForceRefresh(ctx context.Context) (string, error) {
	m.mutex.Lock()
	m.token = ""
	m.mutex.Unlock()
	token, err := m.loadToken(ctx)
	if err != nil {
		return "", err
	}
	m.mutex.Lock()
	delete(m.checks, tokenHash(token))
	m.mutex.Unlock()
	return m.checkToken(ctx, token).Get(ctx)
}

// Invalidate drops token from both tiers keeping repository config.
func (m *CredentialsManager) Invalidate(ctx context.Context) error {
	m.mutex.Lock()
	m.token = ""
	m.checks = map[string]tokenCheck{}
	m.mutex.Unlock()
	return m.settings.DeleteByKey(ctx, secureTokenKey)
}

// ClearAll drops token and repository config.
func (m *CredentialsManager) ClearAll(ctx context.Context) error {
	if err := m.Invalidate(ctx); err != nil {
		return err
	}
	for _, key := range []string{repoOwnerKey, repoNameKey, repoBranchKey} {
		if err := m.settings.DeleteByKey(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// HasToken reports whether any tier holds a token.
//
// Token is not validated against remote.
func (m *CredentialsManager) HasToken() bool {
	m.mutex.Lock()
	token := m.token
	m.mutex.Unlock()
	if len(token) > 0 {
		return true
	}
	_, err := m.settings.GetByKey(secureTokenKey)
	return err == nil
}

// GetConfig returns token-free sync target config.
func (m *CredentialsManager) GetConfig() RepoConfig {
	config := RepoConfig{}
	if setting, err := m.settings.GetByKey(repoOwnerKey); err == nil {
		config.Owner = setting.Value
	}
	if setting, err := m.settings.GetByKey(repoNameKey); err == nil {
		config.Name = setting.Value
	}
	if setting, err := m.settings.GetByKey(repoBranchKey); err == nil {
		config.Branch = setting.Value
	}
	if len(config.Branch) == 0 {
		config.Branch = "main"
	}
	return config
}

// SetConfig saves token-free sync target config.
func (m *CredentialsManager) SetConfig(ctx context.Context, config RepoConfig) error {
	if err := m.settings.SetByKey(ctx, repoOwnerKey, config.Owner); err != nil {
		return err
	}
	if err := m.settings.SetByKey(ctx, repoNameKey, config.Name); err != nil {
		return err
	}
	branch := config.Branch
	if len(branch) == 0 {
		branch = "main"
	}
	return m.settings.SetByKey(ctx, repoBranchKey, branch)
}

// PruneChecks removes expired validation cache entries.
func (m *CredentialsManager) PruneChecks() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for hash, check := range m.checks {
		if time.Since(check.time) >= checkTTL {
			delete(m.checks, hash)
		}
	}
}

func (m *CredentialsManager) loadToken(ctx context.Context) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.token) > 0 {
		return m.token, nil
	}
	setting, err := m.settings.GetByKey(secureTokenKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrAuthRequired
		}
		return "", err
	}
	token, err := m.box.Open(setting.Value)
	if err != nil {
		if errors.Is(err, ErrSealedMismatch) {
			m.dropSecureSettings(ctx)
			return "", ErrAuthRequired
		}
		return "", err
	}
	m.token = token
	return token, nil
}

// checkToken validates token against remote with single flight.
//
// Successful result is cached so concurrent and repeated calls within
// TTL produce one remote request.
func (m *CredentialsManager) checkToken(
	ctx context.Context, token string,
) futures.Future[string] {
	hash := tokenHash(token)
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if check, ok := m.checks[hash]; ok && time.Since(check.time) < checkTTL {
		return check.future
	}
	future, setResult := futures.New[string]()
	m.checks[hash] = tokenCheck{future: future, time: time.Now()}
	go func() {
		login, err := m.validateToken(context.Background(), token)
		if err != nil {
			m.mutex.Lock()
			delete(m.checks, hash)
			m.mutex.Unlock()
		}
		setResult(login, err)
	}()
	return future
}

func (m *CredentialsManager) validateToken(
	ctx context.Context, token string,
) (string, error) {
	client := github.NewClient(m.endpoint, token)
	user, err := client.GetUser(ctx)
	if err != nil {
		if errors.Is(err, github.ErrUnauthorized) {
			_ = m.Invalidate(ctx)
			return "", ErrAuthInvalid
		}
		return "", err
	}
	return user.Login, nil
}

// dropSecureSettings removes only encrypted settings on corruption.
func (m *CredentialsManager) dropSecureSettings(ctx context.Context) {
	settings, err := m.settings.All()
	if err != nil {
		return
	}
	for _, setting := range settings {
		if strings.HasPrefix(setting.Key, securePrefix) {
			_ = m.settings.DeleteByKey(ctx, setting.Key)
		}
	}
}

func tokenHash(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:8])
}
