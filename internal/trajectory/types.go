package trajectory

// #region action
// Action identifies a movement choice. 0 is reserved and never a valid choice.
type Action int

const (
	ActionNone  Action = 0
	ActionUp    Action = 1
	ActionRight Action = 2
	ActionDown  Action = 3
	ActionLeft  Action = 4
)

// Actions lists the valid actions in ActionId order.
var Actions = [4]Action{ActionUp, ActionRight, ActionDown, ActionLeft}

// Valid reports whether a is one of the four movement actions.
func (a Action) Valid() bool {
	return a >= ActionUp && a <= ActionLeft
}

func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionRight:
		return "right"
	case ActionDown:
		return "down"
	case ActionLeft:
		return "left"
	default:
		return "none"
	}
}

// #endregion action

// #region tile
// Tile is the integer code the game writes for a grid cell.
type Tile int

const (
	TileHole Tile = 0
	TileFlat Tile = 1
	TileGoal Tile = 2
	TileTrap Tile = 3
)

// #endregion tile

// #region position
// Position is an integer grid coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Manhattan returns the L1 distance between p and q.
func (p Position) Manhattan(q Position) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// #endregion position

// #region step
// Step is one logged row of an episode after parsing and rounding.
type Step struct {
	Episode string // optional episode id; empty when the log has none
	Time    int    // optional time index; 0 when the log has none
	Pos     Position
	Env     Tile
	Up      Tile
	Down    Tile
	Right   Tile
	Left    Tile
	Action  Action
	Reward  float64
}

// Neighbor returns the tile in the direction of a. Invalid actions read as flat.
func (s Step) Neighbor(a Action) Tile {
	switch a {
	case ActionUp:
		return s.Up
	case ActionRight:
		return s.Right
	case ActionDown:
		return s.Down
	case ActionLeft:
		return s.Left
	default:
		return TileFlat
	}
}

// #endregion step

// #region transition
// Transition is one (state, action, reward, next state, terminal) record.
// Next is nil exactly when Terminal is true. Transitions are not mutated after
// the builder returns them.
type Transition struct {
	Step     Step
	State    FullKey
	Action   Action
	Reward   float64
	Next     *FullKey
	Terminal bool
}

// #endregion transition
