package arbiter

// policyFilter decides, per event, whether forwarding is allowed. Two
// independent gates apply: a per-class disable flag, and (explicit-device
// mode only) an ownership gate that drops pointer input while the process
// does not hold the exclusive grab, so a secondary device cannot affect
// shared input state while not owned.
type policyFilter struct {
	pointerDisabled  bool
	keyboardDisabled bool
	explicit         bool
}

func (p *policyFilter) allowPointer(grabbed bool) bool {
	if p.pointerDisabled {
		return false
	}
	if p.explicit && !grabbed {
		return false
	}
	return true
}

// allowKey reports whether a key transition may be forwarded. Key releases
// are never suppressed by the ownership gate, so a key that was down when
// the grab state changed cannot stay stuck downstream.
func (p *policyFilter) allowKey(pressed, grabbed bool) bool {
	if p.keyboardDisabled {
		return false
	}
	if p.explicit && !grabbed && pressed {
		return false
	}
	return true
}
