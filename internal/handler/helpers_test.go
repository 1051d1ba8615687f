package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/saborportugues/api/internal/auth"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/middleware"
	"github.com/saborportugues/api/internal/session"
)

const testSecret = "test-secret"

// --- Request helpers ---

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, "POST", path, body, nil)
}

// doJSON sends body as JSON. When p is set the request carries p's session
// and claims, as if it had passed Authenticate and LoadSession.
func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, p *session.Profile) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req = req.WithContext(withProfile(req.Context(), *p))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, router http.Handler, path string, p *session.Profile) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, "GET", path, nil, p)
}

func withProfile(ctx context.Context, p session.Profile) context.Context {
	sc := session.New()
	sc.Establish(p.ID)
	sc.SetProfile(p)
	ctx = session.WithContext(ctx, sc)
	return middleware.WithClaims(ctx, &auth.Claims{
		UserID:         p.ID,
		Role:           string(p.Role),
		RestaurantID:   p.RestaurantID.UUID,
		OrganizationID: p.OrganizationID.UUID,
	})
}

func profileWithRole(role enum.Role) *session.Profile {
	return &session.Profile{
		ID:        uuid.New(),
		Email:     string(role) + "@test.pt",
		FullName:  "Test " + string(role),
		Role:      role,
		Activated: true,
	}
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

// --- Slug lookup ---

type staticSlugs map[uuid.UUID]string

func (s staticSlugs) RestaurantSlug(_ context.Context, id uuid.UUID) (string, error) {
	return s[id], nil
}

// --- Transactions ---

// mockTx implements pgx.Tx with only the methods we need.
type mockTx struct {
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

type mockPool struct {
	tx *mockTx
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, nil
}
