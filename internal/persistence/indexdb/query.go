package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LatestRun returns the most recently recorded successful run for a terrain,
// mode and source. It shares the writer's connection, so call it before
// queueing writes.
func (s *SQLiteIndex) LatestRun(ctx context.Context, terrainDigest, mode string, sourceX, sourceY int) (RunRecord, bool, error) {
	if s == nil {
		return RunRecord{}, false, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT run_id,mode,source_x,source_y,grains,outcome,terrain_digest,final_digest,terrain_cells,min_x,max_x,min_y,max_y,duration_ms,COALESCE(error,'')
		FROM runs
		WHERE terrain_digest=? AND mode=? AND source_x=? AND source_y=? AND COALESCE(error,'')=''
		ORDER BY recorded_at DESC LIMIT 1`, terrainDigest, mode, sourceX, sourceY)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	return r, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		r  RunRecord
		ms int64
	)
	err := row.Scan(
		&r.RunID, &r.Mode, &r.SourceX, &r.SourceY, &r.Grains, &r.Outcome,
		&r.TerrainDigest, &r.FinalDigest, &r.TerrainCells,
		&r.Left, &r.Right, &r.Top, &r.Bottom, &ms, &r.Err,
	)
	r.Duration = time.Duration(ms) * time.Millisecond
	return r, err
}
