package vm

import (
	"fmt"
	"log"
)

// claim makes the page resident.
func (s *System) claim(p *Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return s.claimLocked(p)
}

// claimLocked acquires a frame for the page, maps it and fills it. On failure
// the page is left non-resident and the frame is returned to the pool.
func (s *System) claimLocked(p *Page) error {
	if p.frame != NoFrame {
		return nil
	}

	id, err := s.bindFrame(p)
	if err != nil {
		return err
	}

	err = s.materialize(p, s.frames.Content(id))
	if err != nil {
		s.releaseFrame(p)
		return fmt.Errorf("claim %s: %w", p, err)
	}

	s.report(HookPosClaim, p, pageEvent(p))

	return nil
}

// bindFrame gives the page a frame and maps it without filling it.
func (s *System) bindFrame(p *Page) (FrameID, error) {
	id, err := s.frames.Acquire()
	if err != nil {
		return NoFrame, fmt.Errorf("claim %s: %w", p, err)
	}

	err = s.frames.Bind(id, p)
	if err != nil {
		s.frames.Release(id)
		return NoFrame, fmt.Errorf("claim %s: %w", p, err)
	}

	return id, nil
}

// releaseFrame unmaps a resident page and returns its frame to the pool.
func (s *System) releaseFrame(p *Page) {
	p.owner.unmap(p.vAddr)
	s.frames.Release(p.frame)
}

// materialize fills a newly bound frame with the content of the page.
func (s *System) materialize(p *Page, content []byte) error {
	switch v := p.variant.(type) {
	case *uninitPage:
		return s.materializeUninit(p, v, content)
	case *anonPage:
		return s.swapIn(p, v, content)
	case *filePage:
		return s.readFilePage(p, v, content)
	default:
		log.Panicf("unknown page variant %T", v)
	}

	return nil
}

// materializeUninit runs the loader of a page touched for the first time and,
// if it succeeds, turns the page into its target type.
func (s *System) materializeUninit(
	p *Page,
	u *uninitPage,
	content []byte,
) error {
	var next pageVariant

	switch u.target {
	case PageTypeAnon:
		next = &anonPage{}
	case PageTypeFile:
		aux := u.aux.(*FileAux)
		next = &filePage{
			mapping:     aux.Mapping,
			offset:      aux.Offset,
			validLength: aux.ValidLength,
		}
	default:
		log.Panicf("uninit page with target type %s", u.target)
	}

	clear(content)

	if u.load != nil {
		err := u.load(p, content, u.aux)
		if err != nil {
			return err
		}
	}

	p.variant = next

	return nil
}

// evictPage moves the page out of its frame. It is called by the frame pool
// with the page lock held.
func (s *System) evictPage(p *Page) error {
	if p.frame == NoFrame {
		log.Panicf("evicting non-resident %s", p)
	}

	evt := pageEvent(p)

	var err error

	switch v := p.variant.(type) {
	case *anonPage:
		err = s.swapOut(p, v)
	case *filePage:
		err = s.dropFilePage(p, v)
	default:
		log.Panicf("evicting %s", p)
	}

	evt.Err = err
	s.report(HookPosEvict, p, evt)

	return err
}

// unmapAndUnbind removes the hardware translation of a resident page and
// leaves its frame unbound.
func (s *System) unmapAndUnbind(p *Page) {
	p.owner.unmap(p.vAddr)
	s.frames.Unbind(p.frame)
}

// destroyPage tears down a page that is no longer in any supplemental page
// table. Dirty file-backed content is written back and the frame, if any, is
// returned to the pool. The frame is released even if the write-back fails.
func (s *System) destroyPage(p *Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error

	switch v := p.variant.(type) {
	case *uninitPage:
		if aux, ok := v.aux.(*FileAux); ok && v.target == PageTypeFile {
			err = aux.Mapping.release()
		}
	case *anonPage:
		if v.swapped {
			s.swap.Release(v.slot)
			v.swapped = false
		}
	case *filePage:
		err = s.destroyFilePage(p, v)
	}

	if p.frame != NoFrame {
		s.releaseFrame(p)
	}

	return err
}
