package objspace

import (
	"bytes"
	"testing"
)

func TestHeapStringSize(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{0, minHeapStringSize},
		{minHeapStringSize - 1, minHeapStringSize},
		{minHeapStringSize, minHeapStringSize},
		{4096, 4096},
	}
	for _, tt := range tests {
		if got := HeapStringSize(tt.size); got != tt.want {
			t.Errorf("HeapStringSize(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestAttachStrbufCopy(t *testing.T) {
	s := New()
	str := s.NewString()

	src := []byte("hello")
	s.AttachStrbufCopy(str, 8, 0, src, len(src))

	content := s.Content(str)
	if string(content[:5]) != "hello" {
		t.Fatalf("content = %q, want %q", content[:5], "hello")
	}
	obj := s.Get(str)
	if obj.Capa != 8 {
		t.Fatalf("Capa = %d, want 8", obj.Capa)
	}
	if obj.Strbuf == 0 {
		t.Fatalf("buffer-identity slot not set")
	}
}

func TestAttachStrbufCopyOverflow(t *testing.T) {
	s := New()
	str := s.NewString()
	wantContract(t, func() {
		s.AttachStrbufCopy(str, 4, 0, []byte("too long"), 8)
	})
}

func TestAttachStrbufCopyNonOwner(t *testing.T) {
	s := New()
	st := s.NewStruct(nil)
	wantContract(t, func() { s.AttachStrbufCopy(st, 8, 0, nil, 0) })
}

// Growing a string sources the copy from its own current buffer. The copy
// must land before the owner is rewired even when the collector moves
// buffers at the allocation point in between.
func TestSizedReallocSelfAliasUnderStress(t *testing.T) {
	s := New()
	s.SetStress(true)

	str := s.NewString()
	s.NewStrbufFor(str, 11, 1)
	copy(s.Content(str), []byte("hello world"))

	s.SizedRealloc(str, 64, 11)

	content := s.Content(str)
	if string(content[:11]) != "hello world" {
		t.Fatalf("content after self-aliasing grow = %q", content[:11])
	}
	if len(content) != 64 {
		t.Fatalf("capacity after grow = %d, want 64", len(content))
	}
}

// A freshly allocated buffer has no owner until the rewire; a concurrent
// context's allocation point must not relocate it between the copy and the
// owner taking possession.
func TestSizedReallocUnderConcurrentAllocation(t *testing.T) {
	s := New()
	s.SetStress(true)

	str := s.NewString()
	s.NewStrbufFor(str, 16, 0)
	copy(s.Content(str), []byte("sixteen byte str"))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				s.AllocStrbuf(1)
			}
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	for i := 0; i < 2000; i++ {
		s.SizedRealloc(str, 16, 16)

		guard := s.Pin(str)
		got := string(s.Content(str))
		guard.Release()
		if got != "sixteen byte str" {
			t.Fatalf("iteration %d: content = %q", i, got)
		}
	}
}

func TestSizedReallocTruncates(t *testing.T) {
	s := New()
	str := s.NewString()
	s.NewStrbufFor(str, 16, 0)
	copy(s.Content(str), []byte("0123456789abcdef"))

	s.SizedRealloc(str, 8, 16)

	content := s.Content(str)
	if string(content) != "01234567" {
		t.Fatalf("truncated content = %q, want %q", content, "01234567")
	}
}

func TestSizedReallocOrphansOldBuffer(t *testing.T) {
	s := New()
	str := s.NewString()
	s.NewStrbufFor(str, 8, 0)
	old := s.Get(str).Strbuf

	s.SizedRealloc(str, 16, 8)
	if s.Get(str).Strbuf == old {
		t.Fatalf("buffer-identity slot unchanged after realloc")
	}

	s.Collect()
	wantContract(t, func() { s.StrbufChars(old) })
}

func TestContentRefreshesCachedPointer(t *testing.T) {
	s := New()
	s.SetStress(true)

	str := s.NewString()
	s.NewStrbufFor(str, 5, 0)
	copy(s.Content(str), []byte("fresh"))

	// Force relocations; the handle-based refresh must keep resolving to
	// live storage.
	for i := 0; i < 4; i++ {
		s.AllocStrbuf(1)
		if got := s.Content(str); string(got) != "fresh" {
			t.Fatalf("iteration %d: content = %q", i, got)
		}
	}
}

func TestContentWithoutBuffer(t *testing.T) {
	s := New()
	str := s.NewString()
	if got := s.Content(str); got != nil {
		t.Fatalf("content of bufferless string = %v, want nil", got)
	}
}

func TestCharOffsetRealloc(t *testing.T) {
	s := New()
	match := s.NewMatch()

	s.CharOffsetRealloc(match, 4)
	content := s.Content(match)
	if len(content) != 4*matchOffsetSize {
		t.Fatalf("offset table = %d bytes, want %d", len(content), 4*matchOffsetSize)
	}
	for i := range content {
		content[i] = byte(i)
	}

	// Shrink keeps the leading records.
	s.CharOffsetRealloc(match, 2)
	shrunk := s.Content(match)
	if len(shrunk) != 2*matchOffsetSize {
		t.Fatalf("shrunk table = %d bytes, want %d", len(shrunk), 2*matchOffsetSize)
	}
	want := make([]byte, 2*matchOffsetSize)
	for i := range want {
		want[i] = byte(i)
	}
	if !bytes.Equal(shrunk, want) {
		t.Fatalf("shrunk table lost leading records")
	}
}

func TestCharOffsetReallocNonMatch(t *testing.T) {
	s := New()
	str := s.NewString()
	wantContract(t, func() { s.CharOffsetRealloc(str, 2) })
}
