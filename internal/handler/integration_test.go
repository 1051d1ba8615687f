//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/saborportugues/api/internal/cache"
	"github.com/saborportugues/api/internal/config"
	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/events"
	"github.com/saborportugues/api/internal/payment"
	"github.com/saborportugues/api/internal/realtime"
	"github.com/saborportugues/api/internal/router"
	"github.com/saborportugues/api/internal/ws"
)

// TestIntegrationFlow runs one delivery end to end against a real PostgreSQL:
// sign-up, driver onboarding, restaurant status changes pushed over the
// tracking socket, a contested claim and the final delivery.
func TestIntegrationFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
		PublicURL:   "https://app.example.com",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	go hub.Run(ctx)
	go realtime.NewListener(pool, hub).Run(ctx)

	r := router.New(cfg, queries, pool, hub, cache.NewSlugResolver(queries, nil), events.NoopPublisher{}, payment.Disabled{})
	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Bootstrap a restaurant, a meal and the platform owner ---
	restaurantID, mealID := createRestaurant(t, ctx, pool)
	createOwner(t, ctx, pool, "owner@test.pt", "password123")
	ownerToken := signIn(t, server, "owner@test.pt", "password123", "/platform-owner")

	// --- 2. A customer signs up and signs in ---
	status, body := send(t, server, "POST", "/auth/sign-up", map[string]string{
		"email":            "ana@test.pt",
		"full_name":        "Ana Silva",
		"password":         "abc123",
		"confirm_password": "abc123",
	}, "")
	if status != http.StatusCreated {
		t.Fatalf("sign-up: status %d, body %v", status, body)
	}
	customerToken := signIn(t, server, "ana@test.pt", "abc123", "/")

	// --- 3. Two drivers are onboarded through activation links ---
	driverA := onboardDriver(t, server, ownerToken, "rui@test.pt")
	driverB := onboardDriver(t, server, ownerToken, "ines@test.pt")

	// --- 4. The customer's order exists and can be tracked ---
	orderID := createOrder(t, ctx, pool, profileID(t, ctx, pool, "ana@test.pt"), restaurantID, mealID)

	status, body = send(t, server, "GET", "/orders/"+orderID.String(), nil, customerToken)
	if status != http.StatusOK {
		t.Fatalf("track order: status %d, body %v", status, body)
	}
	if items := body["items"].([]interface{}); len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}

	status, body = send(t, server, "GET", "/orders/"+orderID.String(), nil, driverA)
	if status != http.StatusSeeOther || body["redirect"] != "/driver-dashboard" {
		t.Errorf("driver on tracking page: status %d, body %v", status, body)
	}

	conn := dialTracking(t, server, orderID, customerToken)
	defer conn.Close()
	if ev := readEvent(t, conn); ev.Type != ws.EventOrderSnapshot {
		t.Fatalf("first event: got %q, want %q", ev.Type, ws.EventOrderSnapshot)
	}

	// --- 5. The restaurant moves the order along; each step reaches the viewer ---
	for _, next := range []string{"accepted", "preparing", "out_for_delivery"} {
		path := fmt.Sprintf("/restaurants/%s/orders/%s/status", restaurantID, orderID)
		status, body = send(t, server, "PATCH", path, map[string]string{"status": next}, ownerToken)
		if status != http.StatusOK {
			t.Fatalf("status %s: got %d, body %v", next, status, body)
		}
		expectStatusChange(t, conn, next)
	}

	// --- 6. Both drivers go online and race for the delivery ---
	for _, token := range []string{driverA, driverB} {
		status, body = send(t, server, "PUT", "/driver/availability", map[string]bool{"is_available": true}, token)
		if status != http.StatusOK {
			t.Fatalf("availability: status %d, body %v", status, body)
		}
	}

	type claimResult struct {
		token  string
		status int
		body   map[string]interface{}
	}
	results := make([]claimResult, 2)
	var wg sync.WaitGroup
	for i, token := range []string{driverA, driverB} {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			s, b := send(t, server, "POST", "/driver/orders/"+orderID.String()+"/claim", nil, token)
			results[i] = claimResult{token: token, status: s, body: b}
		}(i, token)
	}
	wg.Wait()

	var winner string
	var wins, conflicts int
	for _, res := range results {
		switch res.status {
		case http.StatusOK:
			wins++
			winner = res.token
		case http.StatusConflict:
			conflicts++
			if available, ok := res.body["available"].([]interface{}); !ok || len(available) != 0 {
				t.Errorf("loser should see no open deliveries, got %v", res.body["available"])
			}
		default:
			t.Errorf("claim: unexpected status %d, body %v", res.status, res.body)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("claims: %d won, %d conflicted; want exactly one of each", wins, conflicts)
	}

	// --- 7. The winner delivers ---
	status, body = send(t, server, "POST", "/driver/orders/"+orderID.String()+"/complete", nil, winner)
	if status != http.StatusOK || body["status"] != "delivered" {
		t.Fatalf("complete: status %d, body %v", status, body)
	}
	expectStatusChange(t, conn, "delivered")

	status, body = send(t, server, "GET", "/driver/dashboard", nil, winner)
	if status != http.StatusOK {
		t.Fatalf("driver dashboard: status %d, body %v", status, body)
	}
	today := body["today"].(map[string]interface{})
	if today["deliveries"] != float64(1) || today["earnings"] != "20.50" {
		t.Errorf("today: got %v", today)
	}

	// --- 8. The customer dashboard shows the finished order ---
	status, body = send(t, server, "GET", "/customer/dashboard", nil, customerToken)
	if status != http.StatusOK {
		t.Fatalf("customer dashboard: status %d, body %v", status, body)
	}
	if orders := body["orders"].([]interface{}); len(orders) != 1 {
		t.Errorf("orders: got %d, want 1", len(orders))
	}
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("sabor_test"),
		tcpostgres.WithUsername("sabor"),
		tcpostgres.WithPassword("sabor"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Relative to the package directory, where go test runs.
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createRestaurant(t *testing.T, ctx context.Context, pool *pgxpool.Pool) (restaurantID, mealID uuid.UUID) {
	t.Helper()
	err := pool.QueryRow(ctx,
		`INSERT INTO restaurants (name, slug, address) VALUES ('Tasca do Bairro', 'tasca', 'Rua Augusta 100') RETURNING id`,
	).Scan(&restaurantID)
	if err != nil {
		t.Fatalf("insert restaurant: %v", err)
	}
	err = pool.QueryRow(ctx,
		`INSERT INTO meals (restaurant_id, name, price) VALUES ($1, 'Bacalhau à Brás', 9.00) RETURNING id`, restaurantID,
	).Scan(&mealID)
	if err != nil {
		t.Fatalf("insert meal: %v", err)
	}
	return restaurantID, mealID
}

func createOwner(t *testing.T, ctx context.Context, pool *pgxpool.Pool, email, password string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO profiles (email, hashed_password, full_name, role) VALUES ($1, $2, 'Owner', 'platform_owner')`,
		email, string(hashed))
	if err != nil {
		t.Fatalf("insert owner: %v", err)
	}
}

func profileID(t *testing.T, ctx context.Context, pool *pgxpool.Pool, email string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	if err := pool.QueryRow(ctx, `SELECT id FROM profiles WHERE lower(email) = lower($1)`, email).Scan(&id); err != nil {
		t.Fatalf("find profile %s: %v", email, err)
	}
	return id
}

func createOrder(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID, restaurantID, mealID uuid.UUID) uuid.UUID {
	t.Helper()
	var orderID uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO orders (user_id, restaurant_id, subtotal, delivery_fee, total_amount, delivery_address)
		VALUES ($1, $2, 18.00, 2.50, 20.50, 'Rua da Prata 5')
		RETURNING id`, userID, restaurantID,
	).Scan(&orderID)
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO order_items (order_id, meal_id, quantity, unit_price) VALUES ($1, $2, 2, 9.00)`, orderID, mealID)
	if err != nil {
		t.Fatalf("insert order item: %v", err)
	}
	return orderID
}

// onboardDriver creates a driver as the owner, follows the activation link
// and returns the activated driver's access token.
func onboardDriver(t *testing.T, server *httptest.Server, ownerToken, email string) string {
	t.Helper()

	status, body := send(t, server, "POST", "/admin/drivers", map[string]string{
		"email":     email,
		"full_name": "Driver " + email,
	}, ownerToken)
	if status != http.StatusCreated {
		t.Fatalf("create driver: status %d, body %v", status, body)
	}
	driverID := body["id"].(string)

	status, body = send(t, server, "POST", "/auth/sign-in", map[string]string{"email": email, "password": "whatever"}, "")
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		t.Errorf("pending driver sign-in: got %d", status)
	}

	status, body = send(t, server, "POST", "/admin/drivers/"+driverID+"/activation-link", nil, ownerToken)
	if status != http.StatusOK {
		t.Fatalf("activation link: status %d, body %v", status, body)
	}
	link, err := url.Parse(body["activation_url"].(string))
	if err != nil {
		t.Fatalf("parse activation link: %v", err)
	}

	status, body = send(t, server, "GET", "/driver-activation?"+link.RawQuery, nil, "")
	if status != http.StatusOK {
		t.Fatalf("check activation: status %d, body %v", status, body)
	}

	status, body = send(t, server, "POST", "/driver-activation", map[string]string{
		"user_id":          link.Query().Get("user_id"),
		"token":            link.Query().Get("token"),
		"password":         "driver123",
		"confirm_password": "driver123",
		"phone":            "912345678",
		"vehicle_type":     "scooter",
		"license_plate":    "AA-00-BB",
	}, "")
	if status != http.StatusOK {
		t.Fatalf("activate: status %d, body %v", status, body)
	}

	// The link is single use.
	status, _ = send(t, server, "POST", "/driver-activation", map[string]string{
		"user_id":          link.Query().Get("user_id"),
		"token":            link.Query().Get("token"),
		"password":         "driver123",
		"confirm_password": "driver123",
	}, "")
	if status != http.StatusNotFound {
		t.Errorf("reused activation link: got %d, want %d", status, http.StatusNotFound)
	}

	return signIn(t, server, email, "driver123", "/driver-dashboard")
}

// --- HTTP helpers ---

func signIn(t *testing.T, server *httptest.Server, email, password, wantDestination string) string {
	t.Helper()
	status, body := send(t, server, "POST", "/auth/sign-in", map[string]string{"email": email, "password": password}, "")
	if status != http.StatusOK {
		t.Fatalf("sign-in %s: status %d, body %v", email, status, body)
	}
	if body["destination"] != wantDestination {
		t.Errorf("sign-in %s: destination %v, want %s", email, body["destination"], wantDestination)
	}
	return body["access_token"].(string)
}

func send(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Errorf("marshal body: %v", err)
			return 0, nil
		}
	}

	req, err := http.NewRequest(method, server.URL+path, &buf)
	if err != nil {
		t.Errorf("create request: %v", err)
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	if err != nil {
		t.Errorf("%s %s: %v", method, path, err)
		return 0, nil
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}

// --- WebSocket helpers ---

func dialTracking(t *testing.T, server *httptest.Server, orderID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/orders/" + orderID.String() + "?token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial tracking socket: %v (status %d)", err, status)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) ws.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var ev ws.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

// expectStatusChange reads until the status_changed event for want arrives.
// The order.updated event for the same change must come first.
func expectStatusChange(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	sawUpdate := false
	for i := 0; i < 6; i++ {
		ev := readEvent(t, conn)
		switch ev.Type {
		case "order.updated":
			var order map[string]interface{}
			if err := json.Unmarshal(ev.Payload, &order); err == nil && order["status"] == want {
				sawUpdate = true
			}
		case "order.status_changed":
			var change realtime.StatusChange
			if err := json.Unmarshal(ev.Payload, &change); err != nil {
				t.Fatalf("decode status change: %v", err)
			}
			if change.To != want {
				continue
			}
			if !sawUpdate {
				t.Errorf("status_changed to %s arrived before the order update", want)
			}
			if change.Projection.Status != want {
				t.Errorf("projection status: got %s, want %s", change.Projection.Status, want)
			}
			return
		}
	}
	t.Fatalf("no status change to %s", want)
}
