package pose

// Catalog is a read-only, ordered view over the available poses keyed by id.
// Order is the catalog order used for deterministic tie-breaking.
type Catalog struct {
	poses []Pose
	byID  map[ID]int
}

// NewCatalog builds a catalog from poses. Later duplicates of an id are ignored.
func NewCatalog(poses []Pose) *Catalog {
	c := &Catalog{
		poses: make([]Pose, 0, len(poses)),
		byID:  make(map[ID]int, len(poses)),
	}
	for _, p := range poses {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.poses)
		c.poses = append(c.poses, p)
	}
	return c
}

// Len returns the number of poses.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.poses)
}

// All returns a copy of the poses in catalog order.
func (c *Catalog) All() []Pose {
	if c == nil {
		return nil
	}
	out := make([]Pose, len(c.poses))
	copy(out, c.poses)
	return out
}

// Lookup returns the pose with the given id.
func (c *Catalog) Lookup(id ID) (Pose, bool) {
	if c == nil {
		return Pose{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Pose{}, false
	}
	return c.poses[i], true
}

// Resolve maps ids to poses in order, dropping ids the catalog doesn't know.
// kept[i] is the index into ids that produced poses[i].
func (c *Catalog) Resolve(ids []ID) (poses []Pose, kept []int) {
	for i, id := range ids {
		if p, ok := c.Lookup(id); ok {
			poses = append(poses, p)
			kept = append(kept, i)
		}
	}
	return poses, kept
}

// ByDifficulty returns poses at the given level in catalog order.
func (c *Catalog) ByDifficulty(d Difficulty) []Pose {
	if c == nil {
		return nil
	}
	var out []Pose
	for _, p := range c.poses {
		if p.Difficulty == d {
			out = append(out, p)
		}
	}
	return out
}
