package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case AuthResult:
		o.printAuthResult(v)
	case Me:
		o.printMe(v)
	case MainView:
		o.printMainView(v)
	case GuessResult:
		o.printGuessResult(v)
	case Leaderboard:
		o.printLeaderboard(v)
	case Round:
		o.printRound(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	IsGuest  bool   `json:"is_guest"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player       Player    `json:"player"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// PlayerStats response type
type PlayerStats struct {
	UserID          string `json:"user_id"`
	Nickname        string `json:"nickname"`
	Active          bool   `json:"active"`
	Wins            int    `json:"wins"`
	TotalGames      int    `json:"total_games"`
	MostRecentRound int64  `json:"most_recent_round"`
}

// Me response type
type Me struct {
	Player Player       `json:"player"`
	Stats  *PlayerStats `json:"stats"`
}

// MainView response type
type MainView struct {
	Players         []string     `json:"players"`
	CurrentRound    int64        `json:"current_round"`
	ConnectionToken string       `json:"connection_token"`
	Me              *PlayerStats `json:"me"`
}

// GuessResult response type
type GuessResult struct {
	Round   int64  `json:"round"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
	Won     bool   `json:"won"`
}

// LeaderboardEntry response type
type LeaderboardEntry struct {
	Nickname string `json:"nickname"`
	Wins     int    `json:"wins"`
}

// Leaderboard response type
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// Round response type
type Round struct {
	Round        int64      `json:"round"`
	Active       bool       `json:"active"`
	SecretNumber *int       `json:"secret_number,omitempty"`
	WinnerID     string     `json:"winner_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// HealthResult is the health response plus client-side measurements
type HealthResult struct {
	Status    string `json:"status"`
	Server    string `json:"server,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

func (o *Output) printPlayer(p Player) {
	guestStr := "no"
	if p.IsGuest {
		guestStr = "yes"
	}
	fmt.Printf("Player: %s\n", p.Nickname)
	fmt.Printf("  ID:    %s\n", p.UserID)
	fmt.Printf("  Guest: %s\n", guestStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	fmt.Printf("Session expires: %s\n", a.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Println("Token saved.")
}

func (o *Output) printStats(p *PlayerStats) {
	if p == nil {
		fmt.Println("Not joined yet. Run 'guessctl game view' to join.")
		return
	}
	status := "away"
	if p.Active {
		status = "playing"
	}
	fmt.Printf("Status:      %s\n", status)
	fmt.Printf("Wins:        %d\n", p.Wins)
	fmt.Printf("Total games: %d\n", p.TotalGames)
	fmt.Printf("Last round:  %d\n", p.MostRecentRound)
}

func (o *Output) printMe(m Me) {
	o.printPlayer(m.Player)
	o.printStats(m.Stats)
}

func (o *Output) printMainView(v MainView) {
	fmt.Printf("Round %d\n", v.CurrentRound)
	if len(v.Players) == 0 {
		fmt.Println("Nobody is playing")
	} else {
		fmt.Printf("Playing (%d): %s\n", len(v.Players), strings.Join(v.Players, ", "))
	}
	if v.Me != nil {
		fmt.Printf("You: %s, %d wins in %d games\n", v.Me.Nickname, v.Me.Wins, v.Me.TotalGames)
	}
}

func (o *Output) printGuessResult(g GuessResult) {
	fmt.Printf("[round %d] %s\n", g.Round, g.Message)
}

func (o *Output) printLeaderboard(l Leaderboard) {
	if len(l.Entries) == 0 {
		fmt.Println("No players yet")
		return
	}
	for i, e := range l.Entries {
		fmt.Printf("%3d. %-20s %d\n", i+1, e.Nickname, e.Wins)
	}
}

func (o *Output) printRound(r Round) {
	fmt.Printf("Round %d\n", r.Round)
	fmt.Printf("  Started: %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if r.Active {
		fmt.Println("  State:   in progress")
		return
	}
	fmt.Println("  State:   finished")
	if r.SecretNumber != nil {
		fmt.Printf("  Number:  %d\n", *r.SecretNumber)
	}
	if r.WinnerID != "" {
		fmt.Printf("  Winner:  %s\n", r.WinnerID)
	}
	if r.EndedAt != nil {
		fmt.Printf("  Ended:   %s\n", r.EndedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s (%s, %dms)\n", h.Status, h.Server, h.LatencyMS)
}
