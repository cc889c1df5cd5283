package query

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/demoai/go-trainer/internal/artifact"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/cloning"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/knowledge"
	"github.com/danielpatrickdp/demoai/go-trainer/internal/trajectory"
)

// #region types
// LookupResult holds what the trained artifacts say about one observation.
type LookupResult struct {
	State      string
	Q          []float64 // values for actions 1..4; nil when the state has no Q row
	BestAction trajectory.Action
	ILAction   trajectory.Action // ActionNone when no imitation entry exists
	ILKey      string
	BC         *cloning.Distribution
	BCKey      string
}

// SummaryResult holds the table sizes and knowledge of the served bundle.
type SummaryResult struct {
	Version       string
	GeneratedAt   string
	QRows         int
	ILStates      int
	BCStates      int
	BCFormat      string
	DangerZones   int
	EstimatedGoal artifact.Goal
	Weights       knowledge.DecisionWeights
}

// #endregion types

// #region client-struct
// Client wraps the gRPC connection to a running artifact service.
type Client struct {
	conn   *grpc.ClientConn
	client ArtifactServiceClient
}

// #endregion client-struct

// #region constructor
// NewClient connects to the artifact service at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewArtifactServiceClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
func NewClientWithService(svc ArtifactServiceClient) *Client {
	return &Client{client: svc}
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region lookup
// Lookup asks the service for every artifact entry of key.
func (c *Client) Lookup(ctx context.Context, key trajectory.FullKey) (LookupResult, error) {
	req, err := structpb.NewStruct(map[string]any{
		"x":     key.X,
		"y":     key.Y,
		"env":   int(key.Env),
		"up":    int(key.Up),
		"down":  int(key.Down),
		"right": int(key.Right),
		"left":  int(key.Left),
	})
	if err != nil {
		return LookupResult{}, fmt.Errorf("build lookup request: %w", err)
	}
	resp, err := c.client.Lookup(ctx, req)
	if err != nil {
		return LookupResult{}, fmt.Errorf("lookup rpc: %w", err)
	}

	f := resp.GetFields()
	res := LookupResult{
		State: f["state"].GetStringValue(),
		ILKey: f["il_key"].GetStringValue(),
		BCKey: f["bc_key"].GetStringValue(),
	}
	if q := f["q"].GetListValue(); q != nil {
		for _, v := range q.GetValues() {
			res.Q = append(res.Q, v.GetNumberValue())
		}
		res.BestAction = trajectory.Action(int(f["best_action"].GetNumberValue()))
	}
	if v, ok := f["il_action"]; ok {
		res.ILAction = trajectory.Action(int(v.GetNumberValue()))
	}
	if bc := f["bc"].GetStructValue(); bc != nil {
		bf := bc.GetFields()
		res.BC = &cloning.Distribution{
			Up:      bf["up"].GetNumberValue(),
			Right:   bf["right"].GetNumberValue(),
			Down:    bf["down"].GetNumberValue(),
			Left:    bf["left"].GetNumberValue(),
			Samples: int(bf["samples"].GetNumberValue()),
		}
	}
	return res, nil
}

// #endregion lookup

// #region summary
// Summary fetches the served bundle's overview.
func (c *Client) Summary(ctx context.Context) (SummaryResult, error) {
	resp, err := c.client.Summary(ctx, &structpb.Struct{})
	if err != nil {
		return SummaryResult{}, fmt.Errorf("summary rpc: %w", err)
	}
	f := resp.GetFields()
	g := f["estimated_goal"].GetStructValue().GetFields()
	w := f["decision_weights"].GetStructValue().GetFields()
	return SummaryResult{
		Version:     f["version"].GetStringValue(),
		GeneratedAt: f["generated_at"].GetStringValue(),
		QRows:       int(f["q_rows"].GetNumberValue()),
		ILStates:    int(f["il_states"].GetNumberValue()),
		BCStates:    int(f["bc_states"].GetNumberValue()),
		BCFormat:    f["bc_format"].GetStringValue(),
		DangerZones: int(f["danger_zones"].GetNumberValue()),
		EstimatedGoal: artifact.Goal{
			X:     int(g["x"].GetNumberValue()),
			Y:     int(g["y"].GetNumberValue()),
			Known: g["known"].GetBoolValue(),
		},
		Weights: knowledge.DecisionWeights{
			HoleFearIndex:    w["hole_fear_index"].GetNumberValue(),
			TrapInterest:     w["trap_interest"].GetNumberValue(),
			GoalBias:         w["goal_bias"].GetNumberValue(),
			GoalApproachRate: w["goal_approach_rate"].GetNumberValue(),
		},
	}, nil
}

// #endregion summary
