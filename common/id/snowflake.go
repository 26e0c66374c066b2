// Package id issues snowflake turn ids. Each replica runs its own node
// (TRIAGE_NODE_ID) so ids from different replicas never collide.
package id

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const defaultNode = 0

var (
	mu   sync.RWMutex
	node *snowflake.Node
)

// Init binds the generator to nodeID. The server calls it once at startup.
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// New returns a time-ordered turn id. Without Init, ids come from node 0,
// which is what the CLI and tests run on.
func New() int64 {
	return current().Generate().Int64()
}

// Format renders a turn id for JSON bodies and headers, where a bare int64
// would lose precision in JavaScript clients.
func Format(turnID int64) string {
	return strconv.FormatInt(turnID, 10)
}

func current() *snowflake.Node {
	mu.RLock()
	n := node
	mu.RUnlock()
	if n != nil {
		return n
	}

	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		// Node 0 is always within range.
		node, _ = snowflake.NewNode(defaultNode)
	}
	return node
}
