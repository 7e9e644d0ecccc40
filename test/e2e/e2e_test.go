// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockhost-portal/internal/client"
	"blockhost-portal/internal/common/auth"
	"blockhost-portal/internal/common/config"
	commonerrors "blockhost-portal/internal/common/errors"
	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/common/observability"
	"blockhost-portal/internal/consent"
	"blockhost-portal/internal/drafts"
	"blockhost-portal/internal/forms"
	"blockhost-portal/internal/forms/formstest"
	"blockhost-portal/internal/identity"
	"blockhost-portal/internal/notify"
	"blockhost-portal/internal/panel"
	"blockhost-portal/internal/proxy"
	"blockhost-portal/internal/server"
	"blockhost-portal/internal/storage"
	"blockhost-portal/internal/submission"
)

const (
	jwtSecret  = "e2e-secret"
	lookupSQL  = `SELECT pterodactyl_user_id FROM user_server_mappings WHERE user_id = \$1`
	panelOwner = 7
)

type MockSESService struct {
	mu   sync.Mutex
	sent []*ses.SendEmailInput
	fail bool
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, fmt.Errorf("ses: service unavailable")
	}
	m.sent = append(m.sent, params)
	return &ses.SendEmailOutput{MessageId: aws.String(fmt.Sprintf("ses-%d", len(m.sent)))}, nil
}

func (m *MockSESService) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type stack struct {
	portal  *httptest.Server
	sqlMock sqlmock.Sqlmock
	ses     *MockSESService
	authn   *auth.JWTAuthenticator

	mu        sync.Mutex
	panelHits map[string]int
}

func (s *stack) hits(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panelHits[endpoint]
}

// fakePanel serves the application and client APIs for three servers, two of
// which belong to panel user 7.
func fakePanel(t *testing.T, hits map[string]int, mu *sync.Mutex) *httptest.Server {
	servers := []struct {
		id         int
		identifier string
		user       int
	}{{1, "aaaa1111", panelOwner}, {2, "bbbb2222", 9}, {3, "cccc3333", panelOwner}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/application/servers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ptla_e2e", r.Header.Get("Authorization"))
		mu.Lock()
		hits["list"]++
		mu.Unlock()
		fmt.Fprint(w, `{"object":"list","data":[`)
		for i, s := range servers {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"object":"server","attributes":{"id":%d,"uuid":"uuid-%s","identifier":"%s","name":"srv-%d","user":%d,"limits":{"memory":4096,"disk":20000,"cpu":200}}}`,
				s.id, s.identifier, s.identifier, s.id, s.user)
		}
		fmt.Fprint(w, `],"meta":{"pagination":{"total":3,"count":3,"per_page":100,"current_page":1,"total_pages":1}}}`)
	})
	mux.HandleFunc("/api/client/servers/aaaa1111/resources", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ptlc_e2e", r.Header.Get("Authorization"))
		mu.Lock()
		hits["resources"]++
		mu.Unlock()
		fmt.Fprint(w, `{"object":"stats","attributes":{"current_state":"running","is_suspended":false,"resources":{"memory_bytes":1048576,"cpu_absolute":12.5,"disk_bytes":2048,"network_rx_bytes":1,"network_tx_bytes":2,"uptime":60000}}}`)
	})
	mux.HandleFunc("/api/client/servers/aaaa1111/backups", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[{"object":"backup","attributes":{"uuid":"b-1","name":"nightly","ignored_files":[],"sha256_hash":null,"bytes":1024,"created_at":"2026-01-01T00:00:00+00:00","completed_at":null,"is_successful":true,"is_locked":false}}]}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected panel request %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStack(t *testing.T) *stack {
	log := logger.NewTestLogger(t)

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	identities := identity.NewCachedRepository(identity.NewPostgresRepository(db), rdb, identity.DefaultCacheTTL, log)

	st := &stack{panelHits: map[string]int{}}
	panelSrv := fakePanel(t, st.panelHits, &st.mu)
	panelClient := panel.NewClient(config.PanelConfig{
		BaseURL:        panelSrv.URL,
		ApplicationKey: "ptla_e2e",
		ClientKey:      "ptlc_e2e",
		Timeout:        2000,
	}, observability.NewNoop())

	authn := auth.NewJWTAuthenticator(jwtSecret, "blockhost", "")
	sesMock := &MockSESService{}

	dispatcher := notify.NewDispatcher(&notify.Config{
		FromEmail:         "noreply@blockhost.test",
		StandardRecipient: "apply@blockhost.test",
		FoundingRecipient: "founders@blockhost.test",
	}, sesMock, nil, nil, log)

	handler := server.New(server.Options{
		Proxy:        proxy.NewHandler(proxy.NewService(authn, identities, panelClient, log), log),
		Applications: dispatcher,
		RateLimiter:  server.NewRateLimiter(600, 50),
		Logger:       log,
	}).Handler()

	portal := httptest.NewServer(handler)
	t.Cleanup(portal.Close)

	st.portal = portal
	st.sqlMock = sqlMock
	st.ses = sesMock
	st.authn = authn
	return st
}

func (s *stack) token(t *testing.T, subject string) string {
	tok, err := s.authn.GenerateToken(subject, subject+"@example.com", time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *stack) expectLinked(callerID string, panelUser int) {
	s.sqlMock.ExpectQuery(lookupSQL).WithArgs(callerID).
		WillReturnRows(sqlmock.NewRows([]string{"pterodactyl_user_id"}).AddRow(panelUser))
}

func TestDashboardE2E(t *testing.T) {
	s := newStack(t)
	c := client.New(s.portal.URL, 5*time.Second)
	ctx := context.Background()
	tok := s.token(t, "user-1")

	// Only the first request reaches Postgres; later lookups hit the cache.
	s.expectLinked("user-1", panelOwner)

	servers, err := c.ListServers(ctx, tok)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	for _, srv := range servers {
		assert.Equal(t, panelOwner, srv.Attributes.User)
	}

	details, err := c.ServerDetails(ctx, tok, "3")
	require.NoError(t, err)
	assert.Equal(t, "cccc3333", details.Attributes.Identifier)

	res, err := c.ServerResources(ctx, tok, "uuid-aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "running", res.CurrentState)
	assert.Equal(t, int64(1048576), res.Resources.MemoryBytes)

	backups, err := c.ServerBackups(ctx, tok, "aaaa1111")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Nil(t, backups[0].CompletedAt)

	_, err = c.ServerResources(ctx, tok, "bbbb2222")
	assert.ErrorIs(t, err, commonerrors.Forbidden)

	_, err = c.ListServers(ctx, "forged.token.value")
	assert.ErrorIs(t, err, commonerrors.Unauthorized)

	assert.Equal(t, 1, s.hits("resources"), "denied requests never reach the client API")
	assert.NoError(t, s.sqlMock.ExpectationsWereMet())
}

func TestDashboardE2E_UnlinkedCaller(t *testing.T) {
	s := newStack(t)
	s.sqlMock.ExpectQuery(lookupSQL).WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"pterodactyl_user_id"}))

	_, err := client.New(s.portal.URL, 0).ListServers(context.Background(), s.token(t, "user-2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, commonerrors.Forbidden)
	assert.Equal(t, "Account not linked to a game panel user", commonerrors.Normalize(err).Message)
	assert.Zero(t, s.hits("list"))
}

// applicant is the client side of one form session: draft autosave, consent
// and the submission pipeline, sharing one device store.
type applicant struct {
	mu     sync.Mutex
	values map[string]interface{}
	draft  *drafts.Store
	flow   *submission.Pipeline
	errors []string
}

func (a *applicant) snapshot() map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]interface{}, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

func (a *applicant) reset(v map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = v
}

func (a *applicant) NotifyError(message string) { a.errors = append(a.errors, message) }

func newApplicant(t *testing.T, portalURL string, form forms.FormType, st storage.Storage) *applicant {
	a := &applicant{values: map[string]interface{}{}}
	a.draft = drafts.New(drafts.Options{
		Values:   a.snapshot,
		Reset:    a.reset,
		Key:      form.DraftKey(),
		Defaults: forms.Defaults(form),
		Storage:  st,
		Debounce: 10 * time.Millisecond,
		Logger:   logger.NewTestLogger(t),
	})
	a.draft.Start()
	t.Cleanup(a.draft.Stop)

	a.flow = submission.New(submission.Config{
		Form:      form,
		Values:    a.snapshot,
		Transport: client.New(portalURL, 5*time.Second),
		Drafts:    a.draft,
		Notifier:  a,
		Logger:    logger.NewTestLogger(t),
	})
	return a
}

func TestApplicationE2E(t *testing.T) {
	s := newStack(t)
	device := storage.NewMemoryStorage()
	ctx := context.Background()

	prefs := consent.NewStore(device, logger.NewTestLogger(t))
	prefs.AcceptNecessaryOnly()

	// First session: answers are autosaved, then the applicant leaves.
	first := newApplicant(t, s.portal.URL, forms.Founding, device)
	first.reset(formstest.Founding())
	first.draft.OnChange()
	first.draft.Flush()
	require.True(t, first.draft.HasSavedData())

	// Second session resumes the draft and submits it.
	second := newApplicant(t, s.portal.URL, forms.Founding, device)
	assert.Equal(t, "alexbuilds", second.snapshot()["discordUsername"])

	require.NoError(t, second.flow.Submit(ctx))
	assert.Equal(t, submission.StatusSubmitted, second.flow.Status())
	assert.False(t, second.draft.HasSavedData(), "draft is cleared after a successful submission")
	assert.Equal(t, 2, s.ses.count())

	s.ses.mu.Lock()
	internal := s.ses.sent[0]
	s.ses.mu.Unlock()
	assert.Equal(t, []string{"founders@blockhost.test"}, internal.Destination.ToAddresses)

	// Consent lives next to drafts and is untouched by submission.
	assert.True(t, consent.NewStore(device, logger.NewNoOpLogger()).Load().HasDecided)
}

func TestApplicationE2E_TransportFailureKeepsDraft(t *testing.T) {
	s := newStack(t)
	s.ses.fail = true
	device := storage.NewMemoryStorage()

	a := newApplicant(t, s.portal.URL, forms.Standard, device)
	a.reset(formstest.Standard())
	a.draft.OnChange()
	a.draft.Flush()

	err := a.flow.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, submission.StatusError, a.flow.Status())
	assert.Equal(t, []string{submission.GenericErrorMessage}, a.errors)
	assert.True(t, a.draft.HasSavedData())

	// A retry is allowed once the mail service recovers.
	s.ses.mu.Lock()
	s.ses.fail = false
	s.ses.mu.Unlock()
	require.NoError(t, a.flow.Submit(context.Background()))
	assert.False(t, a.draft.HasSavedData())
}
