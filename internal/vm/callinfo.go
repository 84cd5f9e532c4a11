package vm

// MethodID names a method selector.
type MethodID uint32

// CallFlags carry the call-site shape bits the compiler recorded.
type CallFlags uint32

const (
	CallArgsSplat CallFlags = 1 << iota
	CallArgsBlockarg
	CallFCall
	CallVCall
	CallKwSplat
	CallTailcall
)

// CallKwarg lists the keyword names present at a call site.
type CallKwarg struct {
	Keywords []MethodID
}

// KeywordLen returns the number of keywords at the call site.
func (kw *CallKwarg) KeywordLen() int { return len(kw.Keywords) }

// KeywordAt returns the idx-th keyword name.
func (kw *CallKwarg) KeywordAt(idx int) MethodID { return kw.Keywords[idx] }

// CallInfo is the immutable description of one call site.
type CallInfo struct {
	argc  uint32
	mid   MethodID
	flags CallFlags
	kwarg *CallKwarg
}

// NewCallInfo builds a call-site description.
func NewCallInfo(argc uint32, mid MethodID, flags CallFlags, kwarg *CallKwarg) *CallInfo {
	return &CallInfo{argc: argc, mid: mid, flags: flags, kwarg: kwarg}
}

// Argc returns the positional argument count at the call site.
func (ci *CallInfo) Argc() uint32 { return ci.argc }

// Mid returns the method id being called.
func (ci *CallInfo) Mid() MethodID { return ci.mid }

// Flags returns the call-site flags.
func (ci *CallInfo) Flags() CallFlags { return ci.flags }

// Kwarg returns the keyword list, nil when the call has none.
func (ci *CallInfo) Kwarg() *CallKwarg { return ci.kwarg }

// CallData pairs a call site with its inline cache: the method entry the
// last lookup resolved to, tagged with the lookup serial it was filled
// under. A serial mismatch means some method table changed since the fill
// and the cached entry must not be trusted.
type CallData struct {
	CI *CallInfo

	cachedME     *MethodEntry
	cachedSerial uint64
}

// CachedEntry returns the cached method entry when it was filled under the
// current lookup serial.
func (cd *CallData) CachedEntry(serial uint64) (*MethodEntry, bool) {
	if cd.cachedME == nil || cd.cachedSerial != serial {
		return nil, false
	}
	return cd.cachedME, true
}

// FillCache records a resolved method entry under the given lookup serial.
func (cd *CallData) FillCache(me *MethodEntry, serial uint64) {
	cd.cachedME = me
	cd.cachedSerial = serial
}
