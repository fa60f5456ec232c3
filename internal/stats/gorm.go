package stats

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

/*
 * playerModel is the GORM model backing one (game, username) pair's
 * running win/loss/draw tally.
 */
type playerModel struct {
	ID       uint   `gorm:"primaryKey"`
	Game     string `gorm:"index:idx_game_username,unique"`
	Username string `gorm:"index:idx_game_username,unique"`
	Wins     int
	Losses   int
	Draws    int
}

/*
 * matchModel is the GORM model backing one persisted MatchRecord.
 */
type matchModel struct {
	ID         uint `gorm:"primaryKey"`
	RoomID     int
	Game       string
	WinnerSeat *int
	StartedAt  time.Time
	EndedAt    time.Time
}

/*
 * GormRecorder is the GORM/Postgres implementation of Recorder.
 *
 * Responsibilities:
 *   - Persist one row per completed match.
 *   - Answer the rankings and summary read queries.
 */
type GormRecorder struct {
	db *gorm.DB
}

/*
 * NewGormRecorder opens a Postgres connection using dsn and migrates the
 * stats schema.
 *
 * Parameters:
 *   - dsn (string): A Postgres connection string.
 *
 * Returns:
 *   - *GormRecorder: A recorder bound to the database.
 *   - error: An error if the connection or migration fails.
 */
func NewGormRecorder(dsn string) (*GormRecorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening stats database: %w", err)
	}
	if err := db.AutoMigrate(&playerModel{}, &matchModel{}); err != nil {
		return nil, fmt.Errorf("migrating stats schema: %w", err)
	}
	return &GormRecorder{db: db}, nil
}

/*
 * Record persists one completed match and updates each seat's running
 * tally: the seat matching m.WinnerSeat gets a win, every other seat gets
 * a loss, and a nil WinnerSeat (a draw, or a GameLogic that doesn't report
 * a result) credits a draw to every seat instead.
 *
 * Parameters:
 *   - ctx (context.Context): Request-scoped context, honored for cancellation.
 *   - m (MatchRecord): The completed match to persist.
 *
 * Returns:
 *   - error: An error if the write fails.
 */
func (r *GormRecorder) Record(ctx context.Context, m MatchRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		match := matchModel{RoomID: m.RoomID, Game: m.Game, StartedAt: m.StartedAt, EndedAt: m.EndedAt}
		if m.WinnerSeat != nil {
			seat := *m.WinnerSeat
			match.WinnerSeat = &seat
		}
		if err := tx.Create(&match).Error; err != nil {
			return err
		}

		for _, seatRec := range m.Seats {
			player := playerModel{Game: m.Game, Username: seatRec.Username}
			if err := tx.Where(playerModel{Game: m.Game, Username: seatRec.Username}).
				FirstOrCreate(&player).Error; err != nil {
				return err
			}

			switch {
			case m.WinnerSeat == nil:
				player.Draws++
			case *m.WinnerSeat == seatRec.Seat:
				player.Wins++
			default:
				player.Losses++
			}
			if err := tx.Model(&playerModel{}).Where("id = ?", player.ID).Updates(map[string]any{
				"wins":   player.Wins,
				"losses": player.Losses,
				"draws":  player.Draws,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

/*
 * Rankings retrieves the per-player win/loss/draw tally for game, ordered
 * by wins descending.
 *
 * Parameters:
 *   - ctx (context.Context): Request-scoped context.
 *   - game (string): The game name to scope the query to.
 *
 * Returns:
 *   - RankingResponse: The ranking rows for the game.
 *   - error: An error if the query fails.
 */
func (r *GormRecorder) Rankings(ctx context.Context, game string) (RankingResponse, error) {
	var rows []playerModel
	err := r.db.WithContext(ctx).Where("game = ?", game).Order("wins desc").Find(&rows).Error
	if err != nil {
		return RankingResponse{}, err
	}
	resp := RankingResponse{Game: game}
	for _, row := range rows {
		resp.Rankings = append(resp.Rankings, PlayerRanking{
			Username: row.Username,
			Wins:     row.Wins,
			Losses:   row.Losses,
			Draws:    row.Draws,
		})
	}
	return resp, nil
}

/*
 * Summary retrieves aggregate stats for game.
 *
 * Parameters:
 *   - ctx (context.Context): Request-scoped context.
 *   - game (string): The game name to scope the query to.
 *
 * Returns:
 *   - GeneralStatsResponse: The aggregate stats for the game.
 *   - error: An error if the query fails.
 */
func (r *GormRecorder) Summary(ctx context.Context, game string) (GeneralStatsResponse, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&matchModel{}).Where("game = ?", game).Count(&count).Error; err != nil {
		return GeneralStatsResponse{}, err
	}
	return GeneralStatsResponse{Game: game, TotalGames: int(count)}, nil
}
