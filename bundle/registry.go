package bundle

import "panostitch/photogrammetry"

// registry assigns each camera a stable slot in insertion order. Slot 0 is the reference camera.
type registry struct {
	slots   map[*photogrammetry.Camera]int
	cameras []*photogrammetry.Camera
}

func newRegistry() *registry {
	return &registry{slots: map[*photogrammetry.Camera]int{}}
}

// add returns the slot of cam, registering it first if needed.
func (r *registry) add(cam *photogrammetry.Camera) int {
	if slot, ok := r.slots[cam]; ok {
		return slot
	}
	slot := len(r.cameras)
	r.slots[cam] = slot
	r.cameras = append(r.cameras, cam)
	return slot
}

func (r *registry) slot(cam *photogrammetry.Camera) (int, bool) {
	slot, ok := r.slots[cam]
	return slot, ok
}

func (r *registry) len() int {
	return len(r.cameras)
}
