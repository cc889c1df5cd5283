package query

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/qlearn"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// observationFields are the request fields of Lookup, in FullKey order.
var observationFields = []string{"x", "y", "env", "up", "down", "right", "left"}

// #region server
// Server answers artifact queries from an in-memory bundle.
type Server struct {
	mu     sync.RWMutex
	bundle *artifact.Bundle
	q      qlearn.Table
	dir    string
}

// NewServer serves b. dir is where Reload reads from; it may be empty.
func NewServer(b *artifact.Bundle, dir string) (*Server, error) {
	q, err := qlearn.Decode(b.QTable)
	if err != nil {
		return nil, err
	}
	return &Server{bundle: b, q: q, dir: dir}, nil
}

// Reload replaces the bundle with the artifacts currently in the export dir.
func (s *Server) Reload() error {
	if s.dir == "" {
		return errors.New("reload: no artifact directory")
	}
	b, err := artifact.Load(s.dir)
	if err != nil {
		return fmt.Errorf("reload artifacts: %w", err)
	}
	q, err := qlearn.Decode(b.QTable)
	if err != nil {
		return fmt.Errorf("reload artifacts: %w", err)
	}
	s.mu.Lock()
	s.bundle, s.q = b, q
	s.mu.Unlock()
	log.Info().Str("dir", s.dir).Int("q_rows", len(q)).Msg("Artifacts reloaded")
	return nil
}

func (s *Server) current() (*artifact.Bundle, qlearn.Table) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle, s.q
}

// Lookup returns every artifact entry for one observation.
func (s *Server) Lookup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	key, err := keyFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	b, qt := s.current()
	step := trajectory.Step{
		Pos: trajectory.Position{X: key.X, Y: key.Y},
		Env: key.Env, Up: key.Up, Down: key.Down, Right: key.Right, Left: key.Left,
	}
	full := key.String()
	env := trajectory.EnvKeyOf(step).String()
	sur := trajectory.SurroundKeyOf(step).String()

	out := map[string]any{"state": full}
	found := false
	if row, ok := qt[key]; ok {
		found = true
		q := make([]any, 4)
		for i, a := range trajectory.Actions {
			q[i] = row[a]
		}
		out["q"] = q
		out["best_action"] = int(row.Best())
	}
	for _, k := range []string{full, env} {
		if a, ok := b.ILPolicy[k]; ok {
			found = true
			out["il_action"] = a
			out["il_key"] = k
			break
		}
	}
	for _, k := range []string{sur, env} {
		if d, ok := b.BCPolicy[k]; ok {
			found = true
			out["bc"] = map[string]any{
				"up":      d.Up,
				"right":   d.Right,
				"down":    d.Down,
				"left":    d.Left,
				"samples": d.Samples,
			}
			out["bc_key"] = k
			break
		}
	}
	if !found {
		return nil, status.Errorf(codes.NotFound, "state %s not in any table", full)
	}
	return structpb.NewStruct(out)
}

// Summary reports the size of each table and the extracted knowledge.
func (s *Server) Summary(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	b, _ := s.current()
	g := b.Model.EstimatedGoal
	w := b.Model.DecisionWeights
	return structpb.NewStruct(map[string]any{
		"version":        b.Model.Version,
		"generated_at":   b.Model.GeneratedAt,
		"q_rows":         len(b.QTable),
		"il_states":      len(b.ILPolicy),
		"bc_states":      len(b.BCPolicy),
		"bc_format":      string(b.BCFormat),
		"danger_zones":   len(b.Model.DangerZones),
		"estimated_goal": map[string]any{"x": g.X, "y": g.Y, "known": g.Known},
		"decision_weights": map[string]any{
			"hole_fear_index":    w.HoleFearIndex,
			"trap_interest":      w.TrapInterest,
			"goal_bias":          w.GoalBias,
			"goal_approach_rate": w.GoalApproachRate,
		},
	})
}

func keyFromStruct(in *structpb.Struct) (trajectory.FullKey, error) {
	vals := make([]int, len(observationFields))
	for i, f := range observationFields {
		v, ok := in.GetFields()[f]
		if !ok {
			return trajectory.FullKey{}, fmt.Errorf("missing field %q", f)
		}
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return trajectory.FullKey{}, fmt.Errorf("field %q must be a number", f)
		}
		vals[i] = int(n.NumberValue)
	}
	return trajectory.FullKey{
		X: vals[0], Y: vals[1],
		Env: trajectory.Tile(vals[2]), Up: trajectory.Tile(vals[3]), Down: trajectory.Tile(vals[4]),
		Right: trajectory.Tile(vals[5]), Left: trajectory.Tile(vals[6]),
	}, nil
}

// #endregion server

// #region serve
// Serve runs the artifact service on lis until ctx is cancelled.
func Serve(ctx context.Context, lis net.Listener, srv ArtifactServiceServer) error {
	gs := grpc.NewServer()
	RegisterArtifactServiceServer(gs, srv)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gs.Serve(lis)
	}()
	log.Info().Str("addr", lis.Addr().String()).Msg("Artifact query service listening")

	select {
	case <-ctx.Done():
		gs.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve grpc: %w", err)
		}
		return nil
	}
}

// #endregion serve
