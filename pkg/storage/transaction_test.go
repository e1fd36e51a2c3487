package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTx_ReadYourWrites(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri"))

		tx, err := engine.BeginTx()
		require.NoError(t, err)

		require.NoError(t, tx.CreateNode(resource("a", "http://example.org/a")))
		require.NoError(t, tx.CreateNode(resource("b", "http://example.org/b")))
		require.NoError(t, tx.CreateEdge(&Edge{ID: EdgeIDFor("a", "knows", "b"), StartNode: "a", EndNode: "b", Type: "knows"}))

		found, err := tx.FindNode("Resource", "uri", "http://example.org/a")
		require.NoError(t, err)
		assert.Equal(t, NodeID("a"), found.ID)
		assert.Equal(t, 1, tx.Degree("a", "knows", Outgoing))
		assert.Equal(t, 1, tx.Degree("b", "knows", Incoming))

		// not visible outside the transaction yet
		_, err = engine.GetNode("a")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.Equal(t, 3, tx.OperationCount())
		require.NoError(t, tx.Commit())

		_, err = engine.GetNode("a")
		require.NoError(t, err)
		assert.Equal(t, 1, engine.Degree("a", "knows", Outgoing))
	})
}

func TestTx_Rollback(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a")))

		tx, err := engine.BeginTx()
		require.NoError(t, err)
		require.NoError(t, tx.CreateNode(resource("b", "http://example.org/b")))
		updated := resource("a", "http://example.org/a", "Person")
		require.NoError(t, tx.UpdateNode(updated))
		require.NoError(t, tx.Rollback())

		_, err = engine.GetNode("b")
		assert.ErrorIs(t, err, ErrNotFound)
		a, err := engine.GetNode("a")
		require.NoError(t, err)
		assert.False(t, a.HasLabel("Person"))

		assert.ErrorIs(t, tx.Commit(), ErrTransactionClosed)
		assert.ErrorIs(t, tx.CreateNode(resource("c", "http://example.org/c")), ErrTransactionClosed)
	})
}

func TestTx_UniqueWithinTransaction(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri"))
		require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a")))

		tx, err := engine.BeginTx()
		require.NoError(t, err)
		defer tx.Rollback()

		assert.ErrorIs(t, tx.CreateNode(resource("b", "http://example.org/a")), ErrConstraintViolation)
		require.NoError(t, tx.CreateNode(resource("c", "http://example.org/c")))
		assert.ErrorIs(t, tx.CreateNode(resource("d", "http://example.org/c")), ErrConstraintViolation)
	})
}

func TestTx_EdgeToPendingNode(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a")))

		tx, err := engine.BeginTx()
		require.NoError(t, err)
		require.NoError(t, tx.CreateNode(resource("b", "http://example.org/b")))
		id := EdgeIDFor("a", "knows", "b")
		require.NoError(t, tx.CreateEdge(&Edge{ID: id, StartNode: "a", EndNode: "b", Type: "knows"}))
		assert.ErrorIs(t, tx.CreateEdge(&Edge{ID: id, StartNode: "a", EndNode: "b", Type: "knows"}), ErrAlreadyExists)
		assert.ErrorIs(t, tx.CreateEdge(&Edge{ID: "e-x", StartNode: "a", EndNode: "nope", Type: "knows"}), ErrInvalidEdge)

		require.NoError(t, tx.UpdateEdge(&Edge{ID: id, StartNode: "a", EndNode: "b", Type: "knows",
			Properties: map[string]any{"w": 1.0}}))
		edges, err := tx.EdgesOfType("a", "knows", Outgoing)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, 1.0, edges[0].Properties["w"])

		require.NoError(t, tx.Commit())
		got, err := engine.GetEdge(id)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.Properties["w"])
	})
}

func TestTx_SetMetadata(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		tx, err := engine.BeginTx()
		require.NoError(t, err)
		defer tx.Rollback()

		require.NoError(t, tx.SetMetadata(map[string]any{"runId": "r1", "batch": 3}))
		err = tx.SetMetadata(map[string]any{"blob": strings.Repeat("x", 3000)})
		assert.Error(t, err)
	})
}

func TestMemoryTx_CommitRevalidates(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()
	require.NoError(t, engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri"))

	tx, err := engine.BeginTx()
	require.NoError(t, err)
	require.NoError(t, tx.CreateNode(resource("a", "http://example.org/a")))

	// a concurrent writer takes the uri first
	require.NoError(t, engine.CreateNode(resource("z", "http://example.org/a")))

	assert.ErrorIs(t, tx.Commit(), ErrConstraintViolation)
	_, err = engine.GetNode("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTx_UniqueValueMovesBetweenNodes(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()
	require.NoError(t, engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri"))
	require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a")))

	tx, err := engine.BeginTx()
	require.NoError(t, err)
	require.NoError(t, tx.UpdateNode(resource("a", "http://example.org/renamed")))
	require.NoError(t, tx.CreateNode(resource("b", "http://example.org/a")))
	require.NoError(t, tx.Commit())

	found, err := engine.FindNode("Resource", "uri", "http://example.org/a")
	require.NoError(t, err)
	assert.Equal(t, NodeID("b"), found.ID)
}
