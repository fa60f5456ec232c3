// Package tictactoe is a reference GameLogic implementation (component H):
// a two-seat, turn-based board game exercising Ask.IntChoice, Tell,
// Update, and Ask.BooleanChoice. Grounded on
// juan10024-tictactoe-test's domain.Game / checkWinner, adapted from a
// persisted HTTP+WebSocket game into a self-driving GameLogic that owns
// its own turn loop instead of reacting to individually routed moves.
package tictactoe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/open-tabletop/server/internal/agent"
	"github.com/open-tabletop/server/internal/types"
)

const (
	seatX = 0
	seatO = 1
)

var winConditions = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Name is the registry key this game is registered under.
const Name = "tictactoe"

// Game is a single Tic-Tac-Toe match. It implements game.Logic.
type Game struct {
	agents     []agent.Agent
	board      [9]rune // ' ' empty, 'X', 'O'
	lastWinner rune    // result of the most recently completed game; ' ' is a draw
}

// New constructs a Game. It satisfies game.Constructor: args are ignored
// (tictactoe takes no configuration) and seats must be exactly 2.
func New(args json.RawMessage, seats int) (*Game, error) {
	if seats != 2 {
		return nil, fmt.Errorf("tictactoe requires exactly 2 seats, got %d", seats)
	}
	g := &Game{}
	for i := range g.board {
		g.board[i] = ' '
	}
	return g, nil
}

// SetAgents binds seat 0 to X and seat 1 to O.
func (g *Game) SetAgents(agents []agent.Agent) error {
	if len(agents) != 2 {
		return fmt.Errorf("tictactoe requires exactly 2 agents, got %d", len(agents))
	}
	g.agents = agents
	return nil
}

// Play drives the match to completion: alternating IntChoice(0,8) moves
// until a win, a draw, or ctx is cancelled, then offers a rematch.
func (g *Game) Play(ctx context.Context) error {
	for {
		for i := range g.board {
			g.board[i] = ' '
		}
		winner, err := g.playOneGame(ctx)
		if err != nil {
			return err
		}
		g.lastWinner = winner

		g.announceResult(ctx, winner)

		again, err := g.agents[seatX].Ask().BooleanChoice(ctx, "Play again?")
		if err != nil {
			return nil
		}
		if !again {
			return nil
		}
	}
}

func (g *Game) playOneGame(ctx context.Context) (rune, error) {
	turn := seatX
	for {
		symbol := symbolFor(turn)
		g.broadcastView(ctx)
		g.tellTurn(ctx, turn)

		pos, err := g.requestMove(ctx, turn)
		if err != nil {
			return 0, err
		}

		g.board[pos] = symbol
		if w := checkWinner(g.board); w != ' ' {
			g.broadcastView(ctx)
			return w, nil
		}
		if isFull(g.board) {
			g.broadcastView(ctx)
			return ' ', nil
		}

		turn = 1 - turn
	}
}

func (g *Game) requestMove(ctx context.Context, turn int) (int, error) {
	zero, eight := 0, 8
	for {
		pos, err := g.agents[turn].Ask().IntChoice(ctx, &zero, &eight)
		if err != nil {
			return 0, err
		}
		if g.board[pos] != ' ' {
			g.agents[turn].Tell(ctx, "That cell is already taken.", "", false)
			continue
		}
		return pos, nil
	}
}

func (g *Game) tellTurn(ctx context.Context, turn int) {
	for i, a := range g.agents {
		if i == turn {
			a.Tell(ctx, "Your move: pick a cell 0-8.", "", true)
		} else {
			a.Tell(ctx, "Waiting for the other player.", "", false)
		}
	}
}

func (g *Game) announceResult(ctx context.Context, winner rune) {
	var text string
	switch winner {
	case ' ':
		text = "It's a draw."
	case 'X':
		text = fmt.Sprintf("%c wins!", 'X')
	case 'O':
		text = fmt.Sprintf("%c wins!", 'O')
	}
	for _, a := range g.agents {
		a.Tell(ctx, text, "", true)
	}
}

// broadcastView sends each agent the full board; tictactoe has no hidden
// information so both seats and any spectator see the same state.
func (g *Game) broadcastView(ctx context.Context) {
	diffs := g.diffOps()
	for _, a := range g.agents {
		a.Update(ctx, diffs)
	}
}

func (g *Game) diffOps() []types.DiffOp {
	diffs := make([]types.DiffOp, 0, 9)
	for i, c := range g.board {
		diffs = append(diffs, types.DiffOp{Op: "replace", Key: fmt.Sprintf("cell%d", i), Value: string(c)})
	}
	return diffs
}

// RenderView renders the board as a minimal HTML fragment; tictactoe has
// no per-viewer hidden state so viewerID is ignored and every viewer gets
// the same board.
func (g *Game) RenderView(viewerID *types.SeatID) ([]byte, error) {
	var b strings.Builder
	b.WriteString("<table>")
	for row := 0; row < 3; row++ {
		b.WriteString("<tr>")
		for col := 0; col < 3; col++ {
			cell := g.board[row*3+col]
			b.WriteString("<td>")
			if cell != ' ' {
				b.WriteRune(cell)
			}
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return []byte(b.String()), nil
}

// Winner reports the seat that won the most recently completed game, or
// nil for a draw (or before any game has finished). It satisfies the
// optional game.Result capability so component I can tally wins/losses.
func (g *Game) Winner() *types.SeatID {
	var turn int
	switch g.lastWinner {
	case 'X':
		turn = seatX
	case 'O':
		turn = seatO
	default:
		return nil
	}
	seat := types.SeatID(turn + 1)
	return &seat
}

func symbolFor(turn int) rune {
	if turn == seatX {
		return 'X'
	}
	return 'O'
}

func isFull(board [9]rune) bool {
	for _, c := range board {
		if c == ' ' {
			return false
		}
	}
	return true
}

func checkWinner(board [9]rune) rune {
	for _, c := range winConditions {
		if board[c[0]] != ' ' && board[c[0]] == board[c[1]] && board[c[1]] == board[c[2]] {
			return board[c[0]]
		}
	}
	return ' '
}
