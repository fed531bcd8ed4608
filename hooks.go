package strata

// dispatchReplace runs desc's replace hook (if any) when an insert
// overwrites an existing component value, per spec §4.8: the hook sees both
// values, the owning entity, and a local buffer, and returns whether the
// outgoing value's drop hook should still run. The outgoing value is
// destroyed either way.
func dispatchReplace(desc *ComponentDescriptor, old, new any, id EId, buf *LocalBuffer) {
	if desc == nil || desc.ReplaceHook == nil {
		return
	}
	runDropHook := desc.ReplaceHook(old, new, id, buf)
	if runDropHook {
		dispatchDrop(desc, old, id, buf)
	}
}

// dispatchDrop runs desc's drop hook (if any) when a component value is
// destroyed by despawn or explicit drop. Remove transfers
// ownership to the caller and never calls this (spec §4.8).
func dispatchDrop(desc *ComponentDescriptor, val any, id EId, buf *LocalBuffer) {
	if desc == nil || desc.DropHook == nil {
		return
	}
	desc.DropHook(val, id, buf)
}
