package rivet

import (
	"context"
	"strings"

	"github.com/rivetorm/rivet/schema"
	"golang.org/x/sync/errgroup"
)

// preloadNode is one relation in a preload tree. Trees are explicit node
// arenas keyed by relation name; dotted paths nest.
type preloadNode struct {
	name        string
	constraints []func(*RelationQuery)
	children    map[string]*preloadNode
	childOrder  []string
}

func newPreloadNode(name string) *preloadNode {
	return &preloadNode{name: name, children: make(map[string]*preloadNode)}
}

// addPreloadPath merges a dotted path into the tree. Constraint callbacks
// bind to the path's last segment.
func addPreloadPath(nodes map[string]*preloadNode, order *[]string, path string, cbs []func(*RelationQuery)) {
	segments := strings.Split(path, ".")
	var node *preloadNode
	for i, seg := range segments {
		n, ok := nodes[seg]
		if !ok {
			n = newPreloadNode(seg)
			nodes[seg] = n
			*order = append(*order, seg)
		}
		node = n
		if i < len(segments)-1 {
			nodes = n.children
			order = &n.childOrder
		}
	}
	node.constraints = append(node.constraints, cbs...)
}

// eagerResult carries one relation's fetched rows out of the concurrent
// fetch phase.
type eagerResult struct {
	rel     *schema.Relation
	records *Collection
}

// loadRelations resolves one level of the preload tree onto the parents,
// then recurses. Sibling relations fetch concurrently; matching runs
// sequentially after the group waits since the parents' relation maps are
// not guarded. An empty parent set is a full skip: no queries, and no
// constraint callback runs.
func (c *Client) loadRelations(ctx context.Context, typ *schema.Type, parents []*Record, nodes map[string]*preloadNode, order []string) error {
	if len(parents) == 0 || len(nodes) == 0 {
		return nil
	}
	results := make([]eagerResult, len(order))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range order {
		i := i
		node := nodes[name]
		g.Go(func() error {
			rel, ok := typ.Relation(node.name)
			if !ok {
				return NewUndefinedRelationError(typ.Name, node.name)
			}
			rq := newRelationQuery(c, rel, parents, true)
			for _, cb := range node.constraints {
				cb(rq)
			}
			recs, err := rq.All(gctx)
			if err != nil {
				return err
			}
			results[i] = eagerResult{rel: rel, records: recs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, name := range order {
		res := results[i]
		if err := matchRelation(res.rel, parents, res.records); err != nil {
			return err
		}
		node := nodes[name]
		if len(node.children) > 0 {
			if err := c.loadRelations(ctx, res.rel.Related(), res.records.Records(), node.children, node.childOrder); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load eager-loads the given relation paths onto an already-fetched set of
// records. All records must share the collection's type.
func (c *Client) Load(ctx context.Context, records *Collection, paths ...string) error {
	if records.Len() == 0 || len(paths) == 0 {
		return nil
	}
	nodes := make(map[string]*preloadNode)
	var order []string
	for _, p := range paths {
		addPreloadPath(nodes, &order, p, nil)
	}
	return c.loadRelations(ctx, records.First().Type(), records.Records(), nodes, order)
}
