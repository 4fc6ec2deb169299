package vm

import "fmt"

// swapIn fills the frame of an anonymous page, from swap if the page was
// evicted, with zeros otherwise.
func (s *System) swapIn(p *Page, a *anonPage, content []byte) error {
	if !a.swapped {
		clear(content)
		return nil
	}

	err := s.swap.SwapIn(a.slot, content)
	if err != nil {
		return fmt.Errorf("swap in %s: %w", p, err)
	}

	evt := pageEvent(p)
	evt.Slot = a.slot
	s.report(HookPosSwapIn, p, evt)

	a.swapped = false
	a.slot = 0

	return nil
}

// swapOut writes an anonymous page to a free swap slot and unmaps it.
func (s *System) swapOut(p *Page, a *anonPage) error {
	slot, err := s.swap.SwapOut(s.frames.Content(p.frame))
	if err != nil {
		return fmt.Errorf("swap out %s: %w", p, err)
	}

	a.slot = slot
	a.swapped = true

	evt := pageEvent(p)
	evt.Slot = slot
	s.report(HookPosSwapOut, p, evt)

	s.unmapAndUnbind(p)

	return nil
}
