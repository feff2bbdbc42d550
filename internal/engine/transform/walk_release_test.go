//go:build !debug

package transform

import (
	"errors"
	"testing"

	"github.com/Faultbox/midgard-world/pkg/math"
)

type structural struct {
	child *Node
	err   error
}

func (s *structural) Mount(*Node)   {}
func (s *structural) Unmount(*Node) {}
func (s *structural) Commit(n *Node, _ bool) {
	s.err = n.AddChild(s.child)
}

func TestStructuralChangeDuringWalkIsRefused(t *testing.T) {
	g := NewGraph(nil)
	n := g.New("n")
	hook := &structural{child: g.New("late")}
	n.AddBinding(hook)
	n.Activate()
	n.SetPosition(math.Vec3{X: 1})

	g.Flush()
	if !errors.Is(hook.err, ErrWalkInProgress) {
		t.Fatalf("expected ErrWalkInProgress, got %v", hook.err)
	}
	if len(n.Children()) != 0 {
		t.Error("child must not be attached during the walk")
	}
	if g.Walking() {
		t.Error("walk flag should reset after flush")
	}
}
