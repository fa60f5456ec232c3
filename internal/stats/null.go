package stats

import "context"

// NullRecorder discards match records; used when no stats DSN is
// configured so the core never requires a database to run.
type NullRecorder struct{}

func (NullRecorder) Record(context.Context, MatchRecord) error { return nil }

func (NullRecorder) Rankings(_ context.Context, game string) (RankingResponse, error) {
	return RankingResponse{Game: game}, nil
}

func (NullRecorder) Summary(_ context.Context, game string) (GeneralStatsResponse, error) {
	return GeneralStatsResponse{Game: game}, nil
}
