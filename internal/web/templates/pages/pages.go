// Package pages renders the web pages.
package pages

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/web/templates/layout"
)

// HomeData is the sign-in page
type HomeData struct {
	layout.PageData
	Nickname string
}

// Home renders the sign-in forms
func Home(data HomeData) templ.Component {
	return layout.Base(data.PageData, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<section id="join">
<h2>Join the game</h2>
<form method="post" action="/auth/guest" id="guest-form">
<label>Nickname <input type="text" name="nickname" maxlength="32" required value="`+templ.EscapeString(data.Nickname)+`"></label>
<button type="submit">Play as guest</button>
</form>
<h3>Have an account?</h3>
<form method="post" action="/auth/login" id="login-form">
<label>Username <input type="text" name="username" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Log in</button>
</form>
</section>`)
		return err
	}))
}

// GameData is the main game view
type GameData struct {
	layout.PageData
	Player          *model.Player
	Players         []string
	Round           model.RoundID
	ConnectionToken string
	Leaderboard     []model.LeaderboardEntry
}

// Game renders the roster, round, guess form and leaderboard. The script
// keeps them current from the push channel.
func Game(data GameData) templ.Component {
	return layout.Base(data.PageData, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		fmt.Fprintf(&b, `<section id="game" data-token="%s">`, templ.EscapeString(data.ConnectionToken))
		fmt.Fprintf(&b, `<h2>Round <span id="round">%d</span></h2>`, data.Round)
		b.WriteString(`<p>Guess a number between 1 and 100.</p>`)
		b.WriteString(`<form method="post" action="/guess" id="guess-form">`)
		b.WriteString(`<input type="text" name="guess" inputmode="numeric" autocomplete="off" autofocus required>`)
		b.WriteString(`<button type="submit">Guess</button></form>`)
		b.WriteString(`<p id="guess-msg"></p>`)

		if data.Player != nil {
			fmt.Fprintf(&b, `<p id="stats">Wins: <span id="wins">%d</span> · Games: <span id="total-games">%d</span></p>`,
				data.Player.Wins, data.Player.TotalGames)
		}

		b.WriteString(`<h3>Playing now</h3><ul id="players">`)
		for _, name := range data.Players {
			fmt.Fprintf(&b, `<li>%s</li>`, templ.EscapeString(name))
		}
		b.WriteString(`</ul>`)

		b.WriteString(`<h3>Leaderboard</h3><table id="leaderboard"><thead><tr><th>Player</th><th>Wins</th></tr></thead><tbody>`)
		for _, e := range data.Leaderboard {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%d</td></tr>`, templ.EscapeString(e.Nickname), e.Wins)
		}
		b.WriteString(`</tbody></table>`)

		b.WriteString(`<form method="post" action="/leave" id="leave-form"><button type="submit">Leave</button></form>`)
		b.WriteString(`</section>`)
		b.WriteString(gameScript)

		_, err := io.WriteString(w, b.String())
		return err
	}))
}

// gameScript subscribes to the channel, redraws on every state message and
// reloads once a round is over so the player joins the next one
const gameScript = `<script>
(function () {
  var game = document.getElementById("game");
  var source = new EventSource("/api/v1/channel?token=" + encodeURIComponent(game.dataset.token));
  function text(tag, value) { var el = document.createElement(tag); el.textContent = value; return el; }
  source.addEventListener("state", function (e) {
    var msg = JSON.parse(e.data);
    document.getElementById("round").textContent = msg.currNum;
    var players = document.getElementById("players");
    players.replaceChildren.apply(players, msg.players.map(function (p) { return text("li", p); }));
    var rows = document.querySelector("#leaderboard tbody");
    rows.replaceChildren.apply(rows, msg.leaderBoard.map(function (r) {
      var tr = document.createElement("tr");
      tr.append(text("td", r.nickname), text("td", r.wins));
      return tr;
    }));
    if (msg.guessMsg) {
      document.getElementById("guess-msg").textContent = msg.guessMsg;
      if (msg.guessMsg.indexOf("Game Over") === 0 || msg.guessMsg.indexOf("Congratulations") === 0) {
        source.close();
        setTimeout(function () { window.location.reload(); }, 3000);
      }
    }
  });
  var form = document.getElementById("guess-form");
  form.addEventListener("submit", function (e) {
    e.preventDefault();
    var input = form.elements.guess;
    fetch("/api/v1/game/guess", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      credentials: "same-origin",
      body: JSON.stringify({guess: input.value})
    });
    input.value = "";
  });
})();
</script>`

// Error renders a full page for failures that cannot redirect back to the game
func Error(message string) templ.Component {
	return layout.Base(layout.PageData{Title: "Something went wrong"}, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<section id="error">
<h2>Something went wrong</h2>
<p>`+templ.EscapeString(message)+`</p>
<p><a href="/">Back to the game</a></p>
</section>`)
		return err
	}))
}
