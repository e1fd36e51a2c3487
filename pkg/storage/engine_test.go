package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forEachEngine runs fn against a fresh MemoryEngine and an in-memory Badger.
func forEachEngine(t *testing.T, fn func(t *testing.T, engine Engine)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		engine := NewMemoryEngine()
		defer engine.Close()
		fn(t, engine)
	})

	t.Run("badger", func(t *testing.T) {
		engine, err := NewBadgerEngineInMemory()
		require.NoError(t, err)
		defer engine.Close()
		fn(t, engine)
	})
}

func resource(id NodeID, uri string, labels ...string) *Node {
	return &Node{
		ID:         id,
		Labels:     append([]string{"Resource"}, labels...),
		Properties: map[string]any{"uri": uri},
	}
}

func TestEngine_NodeCRUD(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		node := resource("n1", "http://example.org/a", "Person")
		node.Properties["age"] = 42
		node.Properties["names"] = []string{"Ann", "Anna"}
		require.NoError(t, engine.CreateNode(node))

		got, err := engine.GetNode("n1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Resource", "Person"}, got.Labels)
		assert.Equal(t, int64(42), got.Properties["age"])
		assert.Equal(t, []any{"Ann", "Anna"}, got.Properties["names"])

		assert.ErrorIs(t, engine.CreateNode(resource("n1", "http://example.org/other")), ErrAlreadyExists)

		got.Properties["age"] = 43
		require.NoError(t, engine.UpdateNode(got))
		got, err = engine.GetNode("n1")
		require.NoError(t, err)
		assert.Equal(t, int64(43), got.Properties["age"])

		require.NoError(t, engine.DeleteNode("n1"))
		_, err = engine.GetNode("n1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEngine_PropertyTypesRoundTrip(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		ts := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
		node := resource("n1", "http://example.org/a")
		node.Properties["big"] = int64(1) << 60
		node.Properties["f"] = 1.5
		node.Properties["b"] = true
		node.Properties["ts"] = ts
		node.Properties["d"] = Date{Year: 2020, Month: time.February, Day: 29}
		require.NoError(t, engine.CreateNode(node))

		got, err := engine.GetNode("n1")
		require.NoError(t, err)
		assert.Equal(t, int64(1)<<60, got.Properties["big"])
		assert.Equal(t, 1.5, got.Properties["f"])
		assert.Equal(t, true, got.Properties["b"])
		assert.True(t, ts.Equal(got.Properties["ts"].(time.Time)))
		assert.Equal(t, Date{Year: 2020, Month: time.February, Day: 29}, got.Properties["d"])
	})
}

func TestEngine_UnsupportedPropertyType(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		node := resource("n1", "http://example.org/a")
		node.Properties["bad"] = map[string]any{"nested": true}
		assert.ErrorIs(t, engine.CreateNode(node), ErrInvalidData)
	})
}

func TestEngine_UniqueConstraint(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri"))
		// idempotent
		require.NoError(t, engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri"))
		assert.True(t, engine.GetSchema().HasUniqueConstraint("Resource", "uri"))

		require.NoError(t, engine.CreateNode(resource("n1", "http://example.org/a")))
		err := engine.CreateNode(resource("n2", "http://example.org/a"))
		assert.ErrorIs(t, err, ErrConstraintViolation)

		found, err := engine.FindNode("Resource", "uri", "http://example.org/a")
		require.NoError(t, err)
		assert.Equal(t, NodeID("n1"), found.ID)

		_, err = engine.FindNode("Resource", "uri", "http://example.org/missing")
		assert.ErrorIs(t, err, ErrNotFound)

		// releasing the value on delete lets another node take it
		require.NoError(t, engine.DeleteNode("n1"))
		require.NoError(t, engine.CreateNode(resource("n2", "http://example.org/a")))
	})
}

func TestEngine_AddUniqueConstraintBackfills(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(resource("n1", "http://example.org/a")))
		require.NoError(t, engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri"))

		found, err := engine.FindNode("Resource", "uri", "http://example.org/a")
		require.NoError(t, err)
		assert.Equal(t, NodeID("n1"), found.ID)
		assert.ErrorIs(t, engine.CreateNode(resource("n2", "http://example.org/a")), ErrConstraintViolation)
	})
}

func TestEngine_AddUniqueConstraintRejectsDuplicates(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(resource("n1", "http://example.org/a")))
		require.NoError(t, engine.CreateNode(resource("n2", "http://example.org/a")))

		err := engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri")
		assert.ErrorIs(t, err, ErrConstraintViolation)
		assert.False(t, engine.GetSchema().HasUniqueConstraint("Resource", "uri"))
	})
}

func TestEngine_FindNodeWithoutConstraint(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(&Node{ID: "c", Labels: []string{"_GraphConfig"},
			Properties: map[string]any{"_id": int64(1)}}))

		found, err := engine.FindNode("_GraphConfig", "_id", 1)
		require.NoError(t, err)
		assert.Equal(t, NodeID("c"), found.ID)

		// "1" and 1 are different values
		_, err = engine.FindNode("_GraphConfig", "_id", "1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEngine_EdgesAndDegree(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a")))
		require.NoError(t, engine.CreateNode(resource("b", "http://example.org/b")))
		require.NoError(t, engine.CreateNode(resource("c", "http://example.org/c")))

		knowsAB := &Edge{ID: EdgeIDFor("a", "knows", "b"), StartNode: "a", EndNode: "b", Type: "knows"}
		knowsAC := &Edge{ID: EdgeIDFor("a", "knows", "c"), StartNode: "a", EndNode: "c", Type: "knows"}
		likesAB := &Edge{ID: EdgeIDFor("a", "likes", "b"), StartNode: "a", EndNode: "b", Type: "likes"}
		for _, e := range []*Edge{knowsAB, knowsAC, likesAB} {
			require.NoError(t, engine.CreateEdge(e))
		}

		assert.ErrorIs(t, engine.CreateEdge(&Edge{ID: EdgeIDFor("a", "knows", "b"), StartNode: "a", EndNode: "b", Type: "knows"}), ErrAlreadyExists)
		assert.ErrorIs(t, engine.CreateEdge(&Edge{ID: "e-x", StartNode: "a", EndNode: "zzz", Type: "knows"}), ErrInvalidEdge)

		assert.Equal(t, 2, engine.Degree("a", "knows", Outgoing))
		assert.Equal(t, 1, engine.Degree("a", "likes", Outgoing))
		assert.Equal(t, 3, engine.Degree("a", "", Outgoing))
		assert.Equal(t, 2, engine.Degree("b", "", Incoming))
		assert.Equal(t, 0, engine.Degree("b", "knows", Outgoing))

		between := engine.GetEdgeBetween("a", "b", "likes")
		require.NotNil(t, between)
		assert.Equal(t, likesAB.ID, between.ID)
		assert.Nil(t, engine.GetEdgeBetween("b", "a", ""))

		out, err := engine.GetOutgoingEdges("a")
		require.NoError(t, err)
		assert.Len(t, out, 3)

		edgeCount, err := engine.EdgeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(3), edgeCount)

		// deleting a node removes its relationships
		require.NoError(t, engine.DeleteNode("b"))
		assert.Equal(t, 1, engine.Degree("a", "", Outgoing))
	})
}

func TestEngine_UpdateEdgeKeepsEndpoints(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a")))
		require.NoError(t, engine.CreateNode(resource("b", "http://example.org/b")))
		id := EdgeIDFor("a", "knows", "b")
		require.NoError(t, engine.CreateEdge(&Edge{ID: id, StartNode: "a", EndNode: "b", Type: "knows"}))

		require.NoError(t, engine.UpdateEdge(&Edge{ID: id, StartNode: "a", EndNode: "b", Type: "knows",
			Properties: map[string]any{"since": 2020}}))
		got, err := engine.GetEdge(id)
		require.NoError(t, err)
		assert.Equal(t, int64(2020), got.Properties["since"])

		err = engine.UpdateEdge(&Edge{ID: id, StartNode: "b", EndNode: "a", Type: "knows"})
		assert.ErrorIs(t, err, ErrInvalidData)
	})
}

func TestEngine_LabelQueries(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a", "Person")))
		require.NoError(t, engine.CreateNode(resource("b", "http://example.org/b", "Person")))
		require.NoError(t, engine.CreateNode(resource("c", "http://example.org/c")))

		people, err := engine.GetNodesByLabel("Person")
		require.NoError(t, err)
		assert.Len(t, people, 2)

		count, err := engine.CountNodesByLabel("Resource")
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		count, err = engine.CountNodesByLabel("person")
		require.NoError(t, err)
		assert.Equal(t, int64(0), count, "labels are case sensitive")

		// dropping a label removes it from the index
		a, err := engine.GetNode("a")
		require.NoError(t, err)
		a.Labels = []string{"Resource"}
		require.NoError(t, engine.UpdateNode(a))
		count, err = engine.CountNodesByLabel("Person")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestEngine_Stream(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		for _, id := range []NodeID{"a", "b", "c"} {
			require.NoError(t, engine.CreateNode(resource(id, "http://example.org/"+string(id))))
		}

		seen := 0
		err := StreamNodes(context.Background(), engine, func(*Node) error {
			seen++
			if seen == 2 {
				return ErrIterationStopped
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, seen)
	})
}

func TestEngine_Closed(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine Engine) {
		require.NoError(t, engine.Close())
		_, err := engine.GetNode("a")
		assert.ErrorIs(t, err, ErrStorageClosed)
		_, err = engine.BeginTx()
		assert.ErrorIs(t, err, ErrStorageClosed)
	})
}

func TestBadgerEngine_PersistsConstraints(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewBadgerEngine(dir)
	require.NoError(t, err)
	require.NoError(t, engine.AddUniqueConstraint("n10s_unique_uri", "Resource", "uri"))
	require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a")))
	require.NoError(t, engine.Close())

	engine, err = NewBadgerEngine(dir)
	require.NoError(t, err)
	defer engine.Close()

	constraints := engine.GetSchema().GetConstraints()
	require.Len(t, constraints, 1)
	assert.Equal(t, "n10s_unique_uri", constraints[0].Name)

	found, err := engine.FindNode("Resource", "uri", "http://example.org/a")
	require.NoError(t, err)
	assert.Equal(t, NodeID("a"), found.ID)
}

func TestBadgerEngine_SyncAndGC(t *testing.T) {
	engine, err := NewBadgerEngine(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, engine.CreateNode(resource("a", "http://example.org/a")))

	require.NoError(t, engine.Sync())
	// a fresh value log has nothing to rewrite
	require.NoError(t, engine.RunGC())

	require.NoError(t, engine.Close())
	assert.ErrorIs(t, engine.Sync(), ErrStorageClosed)
	assert.ErrorIs(t, engine.RunGC(), ErrStorageClosed)
}

func TestEdgeIDFor_Deterministic(t *testing.T) {
	assert.Equal(t, EdgeIDFor("a", "knows", "b"), EdgeIDFor("a", "knows", "b"))
	assert.NotEqual(t, EdgeIDFor("a", "knows", "b"), EdgeIDFor("b", "knows", "a"))
	assert.NotEqual(t, EdgeIDFor("a", "knows", "b"), EdgeIDFor("a", "likes", "b"))
	// separator keeps ("ab","c") and ("a","bc") apart
	assert.NotEqual(t, EdgeIDFor("ab", "c", "d"), EdgeIDFor("a", "bc", "d"))
}
