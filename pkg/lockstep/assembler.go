package lockstep

import (
	"sort"

	"github.com/cbodonnell/lockstep/pkg/types"
)

// Assembler collects the commands for the next tick and seals them into a
// deterministic batch.
//
// Ordering is by player id, then sequence. A player contributes at most one
// command per tick: when several arrive the highest sequence wins and the
// rest are discarded as duplicates. Any sequence at or below the last one
// applied for that player is a duplicate too.
type Assembler struct {
	pending     map[uint32]types.Command
	lastApplied map[uint32]uint64
	system      []types.Command
	systemSeq   uint64
}

func NewAssembler() *Assembler {
	return &Assembler{
		pending:     make(map[uint32]types.Command),
		lastApplied: make(map[uint32]uint64),
	}
}

// Add offers a player command for the next tick and reports whether it
// was kept.
func (a *Assembler) Add(c types.Command) bool {
	if c.IsSystem() || c.Sequence == 0 {
		return false
	}
	if c.Sequence <= a.lastApplied[c.PlayerID] {
		return false
	}
	if current, ok := a.pending[c.PlayerID]; ok && current.Sequence >= c.Sequence {
		return false
	}
	c.Type = types.CommandTypePlayer
	a.pending[c.PlayerID] = c.Clone()
	return true
}

// AddSystem injects a session event about subject into the next tick.
func (a *Assembler) AddSystem(t types.CommandType, subject uint32) types.Command {
	a.systemSeq++
	c := types.NewSystemCommand(t, a.systemSeq, subject)
	a.system = append(a.system, c)
	return c
}

// Discard drops any pending command from player.
func (a *Assembler) Discard(player uint32) {
	delete(a.pending, player)
}

// LastApplied returns the highest sequence sealed for player.
func (a *Assembler) LastApplied(player uint32) uint64 {
	return a.lastApplied[player]
}

// Pending returns the number of commands waiting for the next tick.
func (a *Assembler) Pending() int {
	return len(a.pending) + len(a.system)
}

// Seal builds the batch for tick and resets the pending set.
func (a *Assembler) Seal(tick uint64) types.Batch {
	b := types.Batch{Tick: tick}
	if n := len(a.system) + len(a.pending); n > 0 {
		b.Commands = make([]types.Command, 0, n)
	}
	b.Commands = append(b.Commands, a.system...)
	for player, c := range a.pending {
		b.Commands = append(b.Commands, c)
		a.lastApplied[player] = c.Sequence
	}
	sort.Slice(b.Commands, func(i, j int) bool {
		if b.Commands[i].PlayerID != b.Commands[j].PlayerID {
			return b.Commands[i].PlayerID < b.Commands[j].PlayerID
		}
		return b.Commands[i].Sequence < b.Commands[j].Sequence
	})

	a.system = nil
	a.pending = make(map[uint32]types.Command)
	return b
}
