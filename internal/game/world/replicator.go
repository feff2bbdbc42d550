package world

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/engine/octree"
	"github.com/Faultbox/midgard-world/internal/engine/physics"
	"github.com/Faultbox/midgard-world/internal/engine/tick"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/network"
	"github.com/Faultbox/midgard-world/internal/network/packets"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// Transport delivers outbound replication frames. *network.Hub implements it.
type Transport interface {
	Joined() []uuid.UUID
	SendTo(id uuid.UUID, msgs ...packets.Message) error
	Broadcast(msgs ...packets.Message) int
}

// Replicator mirrors entities between worlds by net id.
//
// On the authoritative side, tracked nodes queue spawn and despawn messages
// as they mount and unmount, and nodes committed with a transform change
// since the last send produce EntityState messages read from their committed
// world matrices. On the mirroring side, drained inbox messages become
// ordinary node mutations at the fixed-update boundary. Replicated
// transforms are world space; mirrors live flat under the world root.
type Replicator struct {
	world *World

	// Authoritative side
	replicas  map[uint32]*replica
	byHandle  map[transform.Handle]uint32
	nextID    uint32
	pending   []packets.Message // Spawns and despawns in order
	changed   []*replica
	interval  time.Duration
	sinceSend time.Duration

	// Mirroring side
	mirrors map[uint32]*mirror
}

type replica struct {
	r           *Replicator
	netID       uint32
	node        *transform.Node
	kind        physics.Kind
	halfExtents math.Vec3
	mounted     bool
	changed     bool
}

type mirror struct {
	node     *transform.Node
	parentID uint32
	lastTick uint32
}

// NewReplicator creates a replicator that sends state sendRate times per
// second of simulated time.
func NewReplicator(w *World, sendRate int) *Replicator {
	interval := time.Duration(0)
	if sendRate > 0 {
		interval = time.Second / time.Duration(sendRate)
	}
	return &Replicator{
		world:    w,
		replicas: make(map[uint32]*replica),
		byHandle: make(map[transform.Handle]uint32),
		nextID:   1,
		interval: interval,
		mirrors:  make(map[uint32]*mirror),
	}
}

// Track assigns n a net id and replicates it while it is active. The half
// extents describe a box collider for mirrors, zero for none.
func (r *Replicator) Track(n *transform.Node, kind physics.Kind, halfExtents math.Vec3) (uint32, error) {
	if id, ok := r.byHandle[n.Handle()]; ok {
		return id, nil
	}
	rep := &replica{r: r, netID: r.nextID, node: n, kind: kind, halfExtents: halfExtents}
	if err := n.AddBinding(rep); err != nil {
		return 0, err
	}
	r.nextID++
	r.replicas[rep.netID] = rep
	r.byHandle[n.Handle()] = rep.netID
	return rep.netID, nil
}

// NetID returns the net id of a tracked node.
func (r *Replicator) NetID(h transform.Handle) (uint32, bool) {
	id, ok := r.byHandle[h]
	return id, ok
}

// Destroy destroys a node and forgets the net ids of every tracked node in
// its subtree. Despawns for active nodes are queued by their unmount.
func (r *Replicator) Destroy(n *transform.Node) error {
	if err := r.world.Destroy(n); err != nil {
		return err
	}
	r.prune()
	return nil
}

// prune forgets replicas whose nodes were destroyed, whichever path
// destroyed them.
func (r *Replicator) prune() {
	for id, rep := range r.replicas {
		if !rep.node.Alive() {
			delete(r.byHandle, rep.node.Handle())
			delete(r.replicas, id)
		}
	}
}

// Mirror returns the local node mirroring a remote net id.
func (r *Replicator) Mirror(netID uint32) *transform.Node {
	if m, ok := r.mirrors[netID]; ok {
		return m.node
	}
	return nil
}

// MirrorCount returns the number of mirrored entities.
func (r *Replicator) MirrorCount() int { return len(r.mirrors) }

// Snapshot returns a spawn message for every active tracked node, in net id
// order.
func (r *Replicator) Snapshot() []packets.Message {
	r.prune()
	ids := make([]uint32, 0, len(r.replicas))
	for id, rep := range r.replicas {
		if rep.mounted {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	msgs := make([]packets.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, r.replicas[id].spawn())
	}
	return msgs
}

// Collect returns queued spawns and despawns followed by states for nodes
// changed since the last call, and resets the queues.
func (r *Replicator) Collect() []packets.Message {
	r.prune()
	msgs := r.pending
	r.pending = nil

	slices.SortFunc(r.changed, func(a, b *replica) int { return cmp.Compare(a.netID, b.netID) })
	step := uint32(r.world.scheduler.StepIndex())
	for _, rep := range r.changed {
		rep.changed = false
		if !rep.mounted {
			continue
		}
		msgs = append(msgs, &packets.EntityState{
			NetID:     rep.netID,
			Tick:      step,
			Transform: toWire(rep.node.WorldMatrix()),
		})
	}
	r.changed = r.changed[:0]
	return msgs
}

// Serve registers a commit-phase hook, after the flush, that sends
// snapshots to new subscribers and broadcasts collected messages at the send
// rate.
func (r *Replicator) Serve(t Transport) {
	r.world.scheduler.Register(tick.PhaseCommit, "replicate", func(f *tick.Frame) error {
		if joined := t.Joined(); len(joined) > 0 {
			snapshot := r.Snapshot()
			for _, id := range joined {
				if err := t.SendTo(id, snapshot...); err != nil {
					logger.Named("replication").Warn("snapshot not delivered",
						zap.Stringer("subscriber", id), zap.Error(err))
				}
			}
		}

		r.sinceSend += f.Delta
		if r.sinceSend < r.interval {
			return nil
		}
		r.sinceSend = 0
		if msgs := r.Collect(); len(msgs) > 0 {
			t.Broadcast(msgs...)
		}
		return nil
	})
}

// Listen registers a fixed-update hook that applies everything queued in
// inbox.
func (r *Replicator) Listen(inbox *network.Inbox) {
	r.world.scheduler.Register(tick.PhaseFixedUpdate, "replication inbox", func(*tick.Frame) error {
		r.Apply(inbox.Drain())
		return nil
	})
}

// Apply mirrors messages in order. States older than the last applied state
// of the same entity are ignored.
func (r *Replicator) Apply(msgs []packets.Message) {
	log := logger.Named("replication")
	for _, msg := range msgs {
		switch m := msg.(type) {
		case *packets.EntitySpawn:
			r.applySpawn(m)
		case *packets.EntityState:
			mi, ok := r.mirrors[m.NetID]
			if !ok {
				log.Debug("state for unknown entity", zap.Uint32("net_id", m.NetID))
				continue
			}
			if m.Tick < mi.lastTick {
				continue
			}
			mi.lastTick = m.Tick
			pos, rot, scale := fromWire(m.Transform)
			if err := mi.node.SetWorldTransform(pos, rot, scale); err != nil {
				log.Warn("state not applied", zap.Uint32("net_id", m.NetID), zap.Error(err))
			}
		case *packets.EntityDespawn:
			mi, ok := r.mirrors[m.NetID]
			if !ok {
				continue
			}
			delete(r.mirrors, m.NetID)
			if err := r.world.Destroy(mi.node); err != nil {
				log.Warn("despawn failed", zap.Uint32("net_id", m.NetID), zap.Error(err))
			}
		}
	}
}

func (r *Replicator) applySpawn(m *packets.EntitySpawn) {
	pos, rot, scale := fromWire(m.Transform)
	if mi, ok := r.mirrors[m.NetID]; ok {
		mi.parentID = m.ParentID
		_ = mi.node.SetWorldTransform(pos, rot, scale)
		return
	}

	n, err := r.world.Spawn(m.NameString(), nil, pos, rot, scale)
	if err != nil {
		logger.Named("replication").Warn("spawn failed", zap.Uint32("net_id", m.NetID), zap.Error(err))
		return
	}
	half := math.Vec3{X: m.HalfExtents[0], Y: m.HalfExtents[1], Z: m.HalfExtents[2]}
	if half != (math.Vec3{}) {
		if _, err := r.world.AttachCollider(n, octree.NewBoxShape(half)); err != nil {
			logger.Named("replication").Warn("mirror collider failed", zap.Uint32("net_id", m.NetID), zap.Error(err))
		}
	}
	r.mirrors[m.NetID] = &mirror{node: n, parentID: m.ParentID}
}

func (rep *replica) spawn() *packets.EntitySpawn {
	msg := &packets.EntitySpawn{
		NetID:       rep.netID,
		Transform:   toWire(rep.node.WorldMatrix()),
		HalfExtents: rep.halfExtents.Array(),
		Kind:        uint8(rep.kind),
	}
	if p := rep.node.Parent(); p != nil {
		msg.ParentID, _ = rep.r.NetID(p.Handle())
	}
	msg.SetName(rep.node.Name())
	return msg
}

func (rep *replica) Mount(n *transform.Node) {
	rep.mounted = true
	rep.r.pending = append(rep.r.pending, rep.spawn())
}

func (rep *replica) Commit(n *transform.Node, didTransform bool) {
	if didTransform && !rep.changed {
		rep.changed = true
		rep.r.changed = append(rep.r.changed, rep)
	}
}

func (rep *replica) Unmount(n *transform.Node) {
	rep.mounted = false
	rep.r.pending = append(rep.r.pending, &packets.EntityDespawn{NetID: rep.netID})
}

func toWire(m math.Mat4) packets.Transform {
	pos, rot, scale := m.Decompose()
	return packets.Transform{
		Position: pos.Array(),
		Rotation: [4]float32{rot.X, rot.Y, rot.Z, rot.W},
		Scale:    scale.Array(),
	}
}

func fromWire(t packets.Transform) (math.Vec3, math.Quat, math.Vec3) {
	return math.Vec3{X: t.Position[0], Y: t.Position[1], Z: t.Position[2]},
		math.Quat{X: t.Rotation[0], Y: t.Rotation[1], Z: t.Rotation[2], W: t.Rotation[3]},
		math.Vec3{X: t.Scale[0], Y: t.Scale[1], Z: t.Scale[2]}
}
