package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/guessgame/internal/api"
	"github.com/mcoot/guessgame/internal/factory"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/web"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "guessctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/guessctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

// withTokenFile returns a runner sharing the binary but keeping its own session
func (r *cliRunner) withTokenFile(path string) *cliRunner {
	return &cliRunner{
		binaryPath: r.binaryPath,
		serverURL:  r.serverURL,
		tokenFile:  path,
	}
}

func (r *cliRunner) args(args ...string) []string {
	return append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	cmd := exec.Command(r.binaryPath, r.args(args...)...)
	// Keep the caller's environment from leaking a token in
	cmd.Env = append(os.Environ(), "GUESSCTL_TOKEN=")
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	server   *http.Server
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	app, err := factory.New(ctx, factory.Config{Logger: logger})
	require.NoError(t, err)
	go app.Run(ctx)

	serverURL := "http://" + addr

	router := mux.NewRouter()
	api.Mount(router, api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		PlayController:  app.PlayController,
		RealtimeHandler: app.RealtimeHandler,
		PublicURL:       serverURL + "/",
	})
	web.Mount(router, web.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		PlayController: app.PlayController,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		server: server,
		addr:   serverURL,
		shutdown: func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = server.Shutdown(shutdownCtx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type authResponse struct {
	Player struct {
		UserID   string `json:"user_id"`
		Nickname string `json:"nickname"`
		IsGuest  bool   `json:"is_guest"`
	} `json:"player"`
	SessionToken string `json:"session_token"`
}

type statsResponse struct {
	UserID     string `json:"user_id"`
	Nickname   string `json:"nickname"`
	Active     bool   `json:"active"`
	Wins       int    `json:"wins"`
	TotalGames int    `json:"total_games"`
}

type meResponse struct {
	Player struct {
		UserID   string `json:"user_id"`
		Nickname string `json:"nickname"`
	} `json:"player"`
	Stats *statsResponse `json:"stats"`
}

type viewResponse struct {
	Players         []string       `json:"players"`
	CurrentRound    int64          `json:"current_round"`
	ConnectionToken string         `json:"connection_token"`
	Me              *statsResponse `json:"me"`
}

type guessResponse struct {
	Round   int64  `json:"round"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
	Won     bool   `json:"won"`
}

type leaderboardResponse struct {
	Entries []struct {
		Nickname string `json:"nickname"`
		Wins     int    `json:"wins"`
	} `json:"entries"`
}

type roundResponse struct {
	Round        int64  `json:"round"`
	Active       bool   `json:"active"`
	SecretNumber *int   `json:"secret_number"`
	WinnerID     string `json:"winner_id"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type eventLine struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

type stateMessage struct {
	Players  []string `json:"players"`
	CurrNum  int64    `json:"currNum"`
	GuessMsg string   `json:"guessMsg"`
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(output), &v), "output: %s", output)
	return v
}

// solve binary-searches the secret through the CLI and returns the winning guess
func solve(t *testing.T, cli *cliRunner) (int, guessResponse) {
	t.Helper()

	lo, hi := model.MinSecret, model.MaxSecret
	for lo <= hi {
		mid := (lo + hi) / 2
		output, err := cli.run("game", "guess", strconv.Itoa(mid))
		require.NoError(t, err, "output: %s", output)

		result := decode[guessResponse](t, output)
		switch result.Outcome {
		case "correct":
			return mid, result
		case "too_low":
			lo = mid + 1
		case "too_high":
			hi = mid - 1
		default:
			t.Fatalf("unexpected outcome %q", result.Outcome)
		}
	}

	t.Fatal("secret not found in range")
	return 0, guessResponse{}
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	resp := decode[healthResponse](t, output)
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_PlayerCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Create guest
	output, err := cli.run("player", "guest", "--nickname", "Alice")
	require.NoError(t, err, "output: %s", output)

	authResp := decode[authResponse](t, output)
	assert.Equal(t, "Alice", authResp.Player.Nickname)
	assert.True(t, authResp.Player.IsGuest)
	assert.NotEmpty(t, authResp.SessionToken)

	// Get me (token should be saved in token file)
	output, err = cli.run("player", "me")
	require.NoError(t, err, "output: %s", output)

	me := decode[meResponse](t, output)
	assert.Equal(t, "Alice", me.Player.Nickname)
	assert.Equal(t, authResp.Player.UserID, me.Player.UserID)
	assert.Nil(t, me.Stats, "no stats before joining")
}

func TestCLI_RegisterAndLogin(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("player", "register", "--nickname", "Carol", "--user", "carol", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)
	registered := decode[authResponse](t, output)
	assert.False(t, registered.Player.IsGuest)

	other := cli.withTokenFile(filepath.Join(t.TempDir(), "token2"))
	output, err = other.run("player", "login", "--user", "carol", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)
	loggedIn := decode[authResponse](t, output)
	assert.Equal(t, registered.Player.UserID, loggedIn.Player.UserID)

	output, err = other.run("player", "login", "--user", "carol", "--pass", "wrong")
	assert.Error(t, err)
	assert.Contains(t, output, "INVALID_CREDENTIALS")
}

func TestCLI_FullRound(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	alice := newCLIRunner(t, ts.addr)
	bob := alice.withTokenFile(filepath.Join(t.TempDir(), "token2"))

	_, err := alice.run("player", "guest", "--nickname", "Alice")
	require.NoError(t, err)
	_, err = bob.run("player", "guest", "--nickname", "Bob")
	require.NoError(t, err)

	// Viewing the game joins the round
	output, err := alice.run("game", "view")
	require.NoError(t, err, "output: %s", output)
	view := decode[viewResponse](t, output)
	assert.Equal(t, int64(1), view.CurrentRound)
	assert.NotEmpty(t, view.ConnectionToken)
	require.NotNil(t, view.Me)
	assert.Equal(t, 1, view.Me.TotalGames)

	output, err = bob.run("game", "view")
	require.NoError(t, err, "output: %s", output)
	view = decode[viewResponse](t, output)
	assert.Equal(t, []string{"Alice", "Bob"}, view.Players)

	// The secret stays hidden while the round runs
	output, err = alice.run("round", "1")
	require.NoError(t, err, "output: %s", output)
	round := decode[roundResponse](t, output)
	assert.True(t, round.Active)
	assert.Nil(t, round.SecretNumber)

	secret, result := solve(t, alice)
	assert.True(t, result.Won)
	assert.Equal(t, "You Won!", result.Message)
	assert.Equal(t, int64(1), result.Round)

	output, err = bob.run("round", "1")
	require.NoError(t, err, "output: %s", output)
	round = decode[roundResponse](t, output)
	assert.False(t, round.Active)
	require.NotNil(t, round.SecretNumber)
	assert.Equal(t, secret, *round.SecretNumber)

	output, err = bob.run("leaderboard")
	require.NoError(t, err, "output: %s", output)
	board := decode[leaderboardResponse](t, output)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "Alice", board.Entries[0].Nickname)
	assert.Equal(t, 1, board.Entries[0].Wins)

	// Rejoining counts the new round
	output, err = alice.run("game", "view")
	require.NoError(t, err, "output: %s", output)
	view = decode[viewResponse](t, output)
	assert.Equal(t, int64(2), view.CurrentRound)
	assert.Equal(t, 2, view.Me.TotalGames)
	assert.Equal(t, 1, view.Me.Wins)

	output, err = alice.run("game", "leave")
	require.NoError(t, err, "output: %s", output)
	msg := decode[messageResponse](t, output)
	assert.Equal(t, "Left the game", msg.Message)

	output, err = bob.run("game", "view")
	require.NoError(t, err, "output: %s", output)
	view = decode[viewResponse](t, output)
	assert.Equal(t, []string{"Bob"}, view.Players)
}

func TestCLI_Events(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	_, err := cli.run("player", "guest", "--nickname", "Alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, cli.binaryPath, cli.args("events", "--json")...)
	cmd.Env = append(os.Environ(), "GUESSCTL_TOKEN=")
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	lines := make(chan eventLine)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			var e eventLine
			if json.Unmarshal(scanner.Bytes(), &e) == nil {
				lines <- e
			}
		}
	}()

	next := func(event string) eventLine {
		t.Helper()
		for {
			select {
			case e, ok := <-lines:
				require.True(t, ok, "stream closed before %q", event)
				if e.Event == event {
					return e
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", event)
			}
		}
	}

	next("connected")

	// A guess from the same player shows up as personal feedback
	output, err := cli.run("game", "guess", "abc")
	require.NoError(t, err, "output: %s", output)

	for {
		e := next("state")
		var state stateMessage
		require.NoError(t, json.Unmarshal([]byte(e.Data), &state))
		if state.GuessMsg == "" {
			continue
		}
		assert.Equal(t, "abc is not a number!", state.GuessMsg)
		assert.Equal(t, []string{"Alice"}, state.Players)
		break
	}
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Get player without auth
	output, err := cli.run("player", "me")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "unauthorized")

	output, err = cli.run("player", "guest", "--nickname", "Alice")
	require.NoError(t, err, "output: %s", output)

	// Guessing before joining is rejected
	output, err = cli.run("game", "guess", "50")
	assert.Error(t, err)
	assert.Contains(t, output, "NOT_JOINED")

	// Unknown round
	output, err = cli.run("round", "99")
	assert.Error(t, err)
	assert.Contains(t, output, "ROUND_NOT_FOUND")
}
