package objspace

// Heap object adapter: the only sanctioned way to grow, shrink or initially
// allocate the variable-length storage behind a string or match object.
// Mutating strbufs behind the adapter's back bypasses the collector's
// bookkeeping of the buffer/owner association.

// Object headers below this size are clamped up so that small heap strings
// never fall under the platform's minimum allocation size class. The header
// carries one extra extension field compared to the plain layout.
const (
	stringHeaderSize    = 40
	stringExtensionSize = 8
	minHeapStringSize   = stringHeaderSize + stringExtensionSize
)

// HeapStringSize returns the allocation size for a heap string header of
// the requested size, clamped to the minimum that fits the extension field.
func HeapStringSize(size int) int {
	if size < minHeapStringSize {
		return minHeapStringSize
	}
	return size
}

// AttachStrbufCopy attaches a freshly allocated strbuf of capa bytes to
// owner. The copy source is srcObj's content when srcObj is non-zero, or
// the raw slice src otherwise; either way the first copyLen bytes land in
// the new buffer before the owner is touched, so the source may be the
// owner's current buffer (the self-copy realloc case).
//
// srcObj is pinned for the duration of the call and its content is
// resolved under the pin, never from a caller-held slice that may predate
// a relocation. The new buffer is likewise pinned until the owner takes
// it: it has no owner during the copy, and a concurrent collection cycle
// must not move or reclaim it out from under the copy. Pass srcObj 0 when
// the source does not live in the heap. copyLen > capa is a contract
// violation.
func (s *Space) AttachStrbufCopy(owner Handle, capa int, srcObj Handle, src []byte, copyLen int) {
	guard := s.Pin(srcObj)
	defer guard.Release()
	if srcObj != 0 {
		src = s.StrbufChars(srcObj)
		if copyLen > len(src) {
			copyLen = len(src)
		}
	}

	// May trigger a collection cycle; the pins keep both the source and
	// the not-yet-owned new buffer in place across it.
	newBuf, chars, newGuard := s.allocStrbuf(capa, true)
	defer newGuard.Release()

	if src != nil {
		if copyLen > capa {
			contractViolation("strbuf copy length %d exceeds capacity %d", copyLen, capa)
		}
		copy(chars, src[:copyLen])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.getLocked(owner)
	if obj.Kind != KindString && obj.Kind != KindMatch {
		contractViolation("handle %d cannot own a strbuf (%s)", owner, obj.Kind)
	}
	prev := obj.Strbuf
	obj.Ptr = chars
	obj.Capa = capa
	obj.Strbuf = newBuf
	s.objs[newBuf].owner = owner
	if prev != 0 {
		// The replaced buffer is garbage from here on.
		if old, ok := s.objs[prev]; ok && old.owner == owner {
			old.owner = 0
		}
	}
	s.recordWriteLocked(owner, newBuf)
}

// NewStrbufFor attaches an empty strbuf sized for length content bytes plus
// termLen terminator bytes.
func (s *Space) NewStrbufFor(owner Handle, length, termLen int) {
	s.AttachStrbufCopy(owner, length+termLen, 0, nil, 0)
}

// SizedRealloc replaces the owner's buffer with one of newSize bytes,
// preserving min(oldSize, newSize) content bytes. The copy sources from the
// owner's current buffer, passed as the pinned source object and resolved
// inside the attach.
func (s *Space) SizedRealloc(owner Handle, newSize, oldSize int) {
	obj := s.Get(owner)
	copySize := oldSize
	if newSize < copySize {
		copySize = newSize
	}
	s.AttachStrbufCopy(owner, newSize, obj.Strbuf, nil, copySize)
}

// Content returns the owner's current content slice, refreshing the cached
// pointer from the buffer-identity slot first.
func (s *Space) Content(owner Handle) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.getLocked(owner)
	if obj.Strbuf == 0 {
		return nil
	}
	buf := s.getLocked(obj.Strbuf)
	obj.Ptr = buf.raw[strbufHeaderSize:]
	return obj.Ptr
}

// matchOffsetSize is the byte size of one match-offset record in a match
// object's char-offset table.
const matchOffsetSize = 16

// CharOffsetRealloc resizes a match object's char-offset table to hold
// numRegs records, going through the same relocatable-buffer path as string
// content.
func (s *Space) CharOffsetRealloc(match Handle, numRegs int) {
	obj := s.Get(match)
	if obj.Kind != KindMatch {
		contractViolation("char-offset realloc on non-match handle %d (%s)", match, obj.Kind)
	}
	old := obj.Strbuf
	if obj.Ptr != nil && old != StrbufFromChars(obj.Ptr) {
		contractViolation("match %d buffer slot out of sync with cached pointer", match)
	}
	newCapa := numRegs * matchOffsetSize
	oldCapa := 0
	if old != 0 {
		oldCapa = s.StrbufCapa(old)
	}
	s.AttachStrbufCopy(match, newCapa, old, nil, min(oldCapa, newCapa))
}
