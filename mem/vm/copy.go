package vm

import (
	"errors"
	"fmt"
	"log"
)

// CopyAddressSpace fills dst, the address space of a child process, with a
// copy of every page of src. Pages that were never touched stay lazy in the
// child. The other pages get a frame of their own right away. On failure the
// caller is expected to destroy dst.
func (s *System) CopyAddressSpace(dst, src *AddressSpace) error {
	for _, p := range src.spt.Pages() {
		err := s.copyPage(dst, p)
		if err != nil {
			return fmt.Errorf("copy %s to %s: %w", src.Name(), dst.Name(), err)
		}
	}

	s.report(HookPosFork, nil, Event{
		ASID:   dst.id,
		Frame:  NoFrame,
		Length: uint64(dst.spt.Len()) * PageSize,
	})

	return nil
}

func (s *System) copyPage(dst *AddressSpace, parent *Page) error {
	parent.mu.Lock()
	defer parent.mu.Unlock()

	if u, ok := parent.variant.(*uninitPage); ok {
		return s.copyUninitPage(dst, parent, u)
	}

	var variant pageVariant

	switch v := parent.variant.(type) {
	case *anonPage:
		variant = &anonPage{}
	case *filePage:
		v.mapping.retain()
		variant = &filePage{
			mapping:     v.mapping,
			offset:      v.offset,
			validLength: v.validLength,
		}
	default:
		log.Panicf("copying %s", parent)
	}

	child := newPage(dst, parent.vAddr, parent.writable, variant)
	child.stack = parent.stack

	if !dst.spt.Insert(child) {
		err := fmt.Errorf("copy %s: %w", parent, ErrPageExists)
		if f, ok := variant.(*filePage); ok {
			err = errors.Join(err, f.mapping.release())
		}

		return err
	}

	err := s.claimLocked(parent)
	if err != nil {
		return err
	}

	child.mu.Lock()
	defer child.mu.Unlock()

	id, err := s.bindFrame(child)
	if err != nil {
		return err
	}

	copy(s.frames.Content(id), s.frames.Content(parent.frame))

	if parent.owner.isDirty(parent.vAddr) {
		dst.setDirty(child.vAddr)
	}

	s.report(HookPosClaim, child, pageEvent(child))

	return nil
}

func (s *System) copyUninitPage(
	dst *AddressSpace,
	parent *Page,
	u *uninitPage,
) error {
	aux, isFile := u.aux.(*FileAux)
	isFile = isFile && u.target == PageTypeFile

	if isFile {
		aux.Mapping.retain()
	}

	child := newPage(dst, parent.vAddr, parent.writable, &uninitPage{
		load:   u.load,
		aux:    u.aux,
		target: u.target,
	})
	child.stack = parent.stack

	if !dst.spt.Insert(child) {
		err := fmt.Errorf("copy %s: %w", parent, ErrPageExists)
		if isFile {
			err = errors.Join(err, aux.Mapping.release())
		}

		return err
	}

	return nil
}
