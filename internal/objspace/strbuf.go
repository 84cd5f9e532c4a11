package objspace

import (
	"encoding/binary"
	"unsafe"
)

// Strbufs are off-header heap allocations holding variable-length payload
// bytes. The collector may move one between any two operations that can
// allocate, so the content slice returned here is only valid until the next
// allocation point; re-fetch it through the handle afterwards.
//
// Each strbuf stores an 8-byte descriptor header immediately before its
// content, holding the buffer's own handle. StrbufFromChars recovers the
// descriptor from a raw content pointer with pointer arithmetic alone.

const strbufHeaderSize = 8

// AllocStrbuf allocates a strbuf with the given byte capacity and returns
// its handle together with the current content slice.
//
// Any call may trigger a collection cycle: raw pointers into other heap
// objects held across this call must be covered by a pin.
func (s *Space) AllocStrbuf(capa int) (Handle, []byte) {
	h, chars, _ := s.allocStrbuf(capa, false)
	return h, chars
}

// allocStrbuf is the shared allocation path. With pin set the new buffer is
// returned already pinned: a fresh buffer has no owner, and an unpinned
// ownerless buffer is fair game for relocation or sweeping the moment the
// space lock drops, before the caller has taken possession.
func (s *Space) allocStrbuf(capa int, pin bool) (Handle, []byte, PinGuard) {
	if capa < 0 {
		contractViolation("negative strbuf capacity %d", capa)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Allocation is the collection trigger point.
	if s.stress {
		s.relocateLocked()
	}

	h, obj := s.allocStrbufLocked(capa)
	var guard PinGuard
	if pin {
		obj.pins++
		guard = PinGuard{s: s, h: h}
	}
	return h, obj.raw[strbufHeaderSize:], guard
}

func (s *Space) allocStrbufLocked(capa int) (Handle, *Object) {
	h, obj := s.allocLocked(KindStrbuf)
	obj.Capa = capa
	obj.raw = make([]byte, strbufHeaderSize+capa)
	binary.LittleEndian.PutUint64(obj.raw[:strbufHeaderSize], uint64(h))
	s.counters.StrbufAllocs++
	return h, obj
}

// ReallocStrbuf allocates a replacement strbuf of newCapa bytes and copies
// up to preserve bytes of content from the existing buffer. Allocation and
// copy happen in one step under the space lock, so no concurrent collection
// cycle can come between them. Buffers are never resized in place; the old
// buffer stays behind as garbage once its owner lets go of it. existing may
// be 0, in which case this is a plain allocation.
//
// If newCapa < preserve, only newCapa bytes are copied. Truncation is not
// an error.
func (s *Space) ReallocStrbuf(existing Handle, newCapa, preserve int) (Handle, []byte) {
	if newCapa < 0 {
		contractViolation("negative strbuf capacity %d", newCapa)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var old *Object
	if existing != 0 {
		old = s.getLocked(existing)
		if old.Kind != KindStrbuf {
			contractViolation("realloc of non-strbuf handle %d (%s)", existing, old.Kind)
		}
	}

	// Allocation is the collection trigger point. The relocation pass may
	// move the source, so its content is resolved only afterwards.
	if s.stress {
		s.relocateLocked()
	}
	newH, obj := s.allocStrbufLocked(newCapa)
	chars := obj.raw[strbufHeaderSize:]
	if old == nil {
		return newH, chars
	}

	n := preserve
	if n > old.Capa {
		n = old.Capa
	}
	if n > newCapa {
		n = newCapa
	}
	copy(chars, old.raw[strbufHeaderSize:strbufHeaderSize+n])
	return newH, chars
}

// StrbufChars resolves a strbuf handle to its current content slice. The
// slice is invalidated by the next allocation point.
func (s *Space) StrbufChars(h Handle) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.getLocked(h)
	if obj.Kind != KindStrbuf {
		contractViolation("handle %d is not a strbuf (%s)", h, obj.Kind)
	}
	return obj.raw[strbufHeaderSize:]
}

// StrbufCapa returns a strbuf's byte capacity.
func (s *Space) StrbufCapa(h Handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.getLocked(h)
	if obj.Kind != KindStrbuf {
		contractViolation("handle %d is not a strbuf (%s)", h, obj.Kind)
	}
	return obj.Capa
}

// StrbufFromChars recovers the owning strbuf handle from a raw content
// pointer. The descriptor header sits immediately before the content, so
// this is pointer arithmetic, not a lookup. chars must be a content slice
// produced by this space and still current.
func StrbufFromChars(chars []byte) Handle {
	p := unsafe.SliceData(chars)
	if p == nil {
		contractViolation("strbuf recovery from nil content pointer")
	}
	hdr := unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(p), -strbufHeaderSize)), strbufHeaderSize)
	return Handle(binary.LittleEndian.Uint64(hdr))
}

// relocateLocked moves every movable strbuf to fresh backing storage and
// scrubs the abandoned storage. Pinned buffers, and buffers whose owner is
// pinned, stay put.
func (s *Space) relocateLocked() {
	for h, obj := range s.objs {
		if obj.Kind != KindStrbuf || !obj.Alive || obj.raw == nil {
			continue
		}
		if obj.pins > 0 || s.ownerPinnedLocked(obj) {
			continue
		}
		moved := make([]byte, len(obj.raw))
		copy(moved, obj.raw)
		for i := range obj.raw {
			obj.raw[i] = 0
		}
		obj.raw = moved
		// Fix up the owner's buffer-identity-derived pointer, as the
		// collector does during compaction. Raw pointers held in
		// caller locals are deliberately left dangling.
		if obj.owner != 0 {
			if owner, ok := s.objs[obj.owner]; ok && owner.Alive && owner.Strbuf == h {
				owner.Ptr = moved[strbufHeaderSize:]
			}
		}
		s.counters.Relocations++
	}
}

func (s *Space) ownerPinnedLocked(buf *Object) bool {
	if buf.owner == 0 {
		return false
	}
	owner, ok := s.objs[buf.owner]
	return ok && owner != nil && owner.Alive && owner.pins > 0
}

// Collect reclaims strbufs that no live owner references and that are not
// pinned. Object headers are only reclaimed through owner death, which is
// driven by the embedding runtime, so Collect confines itself to buffers.
func (s *Space) Collect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Sweeps++

	reachable := make(map[Handle]struct{}, len(s.objs))
	for _, obj := range s.objs {
		if obj.Alive && obj.Strbuf != 0 && obj.Kind != KindStrbuf {
			reachable[obj.Strbuf] = struct{}{}
		}
	}
	for h, obj := range s.objs {
		if obj.Kind != KindStrbuf || !obj.Alive || obj.pins > 0 {
			continue
		}
		if _, ok := reachable[h]; ok {
			continue
		}
		if obj.owner != 0 {
			if owner, live := s.objs[obj.owner]; live && owner.Alive && owner.Strbuf == h {
				continue
			}
		}
		obj.Alive = false
		for i := range obj.raw {
			obj.raw[i] = 0
		}
		obj.raw = nil
		s.counters.SweptStrbufs++
	}
}
