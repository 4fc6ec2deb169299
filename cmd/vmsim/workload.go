package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/filesys"
	"github.com/sarchlab/vmsim/monitoring"
)

const (
	codeBase uint64 = 0x400000
	heapBase uint64 = 0x8000000
	mmapBase uint64 = 0x10000000
)

var errMismatch = errors.New("content mismatch")

// A workload drives one pattern of memory accesses.
type workload struct {
	name string
	run  func(env *workloadEnv) error
}

var workloads = []workload{
	{"stack", runStack},
	{"mmap", runMmap},
	{"fork", runFork},
	{"pressure", runPressure},
}

func findWorkload(name string) (workload, bool) {
	for _, w := range workloads {
		if w.name == name {
			return w, true
		}
	}

	return workload{}, false
}

type workloadEnv struct {
	system *vm.System
	sched  *scheduler
	pages  int
	out    io.Writer
	bar    *monitoring.ProgressBar
}

func (env *workloadEnv) advance() {
	if env.bar != nil {
		env.bar.IncrementFinished(1)
	}
}

func (env *workloadEnv) newProcess() (*process, error) {
	as := env.system.NewAddressSpace()

	sp, err := env.system.SetupStack(as)
	if err != nil {
		return nil, err
	}

	p := &process{as: as, sp: sp}
	env.sched.run(p)

	return p, nil
}

func (env *workloadEnv) exit(p *process) error {
	if env.sched.CurrentAddressSpace() == p.as {
		env.sched.TerminateCurrent(0)
	}

	return env.system.DestroyAddressSpace(p.as)
}

// pattern returns n bytes that identify the page with index i.
func pattern(i, n int) []byte {
	b := make([]byte, n)
	for j := range b {
		b[j] = byte(i*31 + j)
	}

	return b
}

func (env *workloadEnv) mustRead(p *process, addr uint64, want []byte) error {
	got := make([]byte, len(want))

	err := env.system.Read(p.as, addr, got)
	if err != nil {
		return err
	}

	if !bytes.Equal(got, want) {
		return fmt.Errorf("read at 0x%x: %w", addr, errMismatch)
	}

	return nil
}

// runStack pushes one page at a time onto the stack and then makes an access
// far below the stack pointer, which must kill the process.
func runStack(env *workloadEnv) (err error) {
	p, err := env.newProcess()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, env.exit(p)) }()

	pages := min(env.pages, int(vm.MaxStackSize/vm.PageSize)-1)
	top := p.sp
	sp := top

	for i := 0; i < pages; i++ {
		sp -= vm.PageSize
		env.sched.setStackPointer(sp)

		err = env.system.Write(p.as, sp, pattern(i, int(vm.PageSize)))
		if err != nil {
			return err
		}

		env.advance()
	}

	for i := 0; i < pages; i++ {
		err = env.mustRead(p, top-uint64(i+1)*vm.PageSize,
			pattern(i, int(vm.PageSize)))
		if err != nil {
			return err
		}
	}

	wild := sp - 64*vm.PageSize
	if env.system.OnPageFault(wild, true, true) {
		return fmt.Errorf("access at 0x%x was not rejected", wild)
	}

	if !p.exited || p.status != vm.ExitStatusKilled {
		return fmt.Errorf("access at 0x%x did not kill the process", wild)
	}

	fmt.Fprintf(env.out,
		"stack: pushed %d pages, stray access killed the process\n", pages)

	return nil
}

// runMmap maps a temporary file, modifies every page and checks that the
// changes reach the file after unmapping.
func runMmap(env *workloadEnv) (err error) {
	size := env.pages*int(vm.PageSize) - int(vm.PageSize)/2
	content := pattern(7, size)

	name, err := writeTempFile(content)
	if err != nil {
		return err
	}
	defer os.Remove(name)

	file, err := filesys.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	p, err := env.newProcess()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, env.exit(p)) }()

	_, err = env.system.Mmap(p.as, mmapBase, uint64(size), true, file, 0)
	if err != nil {
		return err
	}

	err = env.mustRead(p, mmapBase, content)
	if err != nil {
		return err
	}

	for i := 0; i < env.pages; i++ {
		offset := i * int(vm.PageSize)
		content[offset] = 0xff

		err = env.system.Write(p.as, mmapBase+uint64(offset), []byte{0xff})
		if err != nil {
			return err
		}

		env.advance()
	}

	err = env.system.Munmap(p.as, mmapBase)
	if err != nil {
		return err
	}

	written, err := os.ReadFile(name)
	if err != nil {
		return err
	}

	if !bytes.Equal(written, content) {
		return fmt.Errorf("file after munmap: %w", errMismatch)
	}

	fmt.Fprintf(env.out,
		"mmap: wrote back %d pages of a %d-byte file\n", env.pages, size)

	return nil
}

func writeTempFile(content []byte) (string, error) {
	f, err := os.CreateTemp("", "vmsim-mmap-*")
	if err != nil {
		return "", err
	}

	_, err = f.Write(content)

	return f.Name(), errors.Join(err, f.Close())
}

// runFork loads a program image, touches part of it, copies the address
// space and checks that writes in the child do not reach the parent.
func runFork(env *workloadEnv) (err error) {
	size := env.pages*int(vm.PageSize) - 100
	image := pattern(3, size)
	zeroBytes := vm.PageRoundUp(uint64(size)) - uint64(size)

	parent, err := env.newProcess()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, env.exit(parent)) }()

	err = env.system.LoadSegment(parent.as, bytes.NewReader(image), 0,
		codeBase, uint64(size), zeroBytes, true)
	if err != nil {
		return err
	}

	for i := 0; i < env.pages; i += 2 {
		offset := i * int(vm.PageSize)
		err = env.mustRead(parent, codeBase+uint64(offset),
			image[offset:offset+1])
		if err != nil {
			return err
		}
	}

	child := &process{as: env.system.NewAddressSpace(), sp: parent.sp}
	defer func() { err = errors.Join(err, env.exit(child)) }()

	err = env.system.CopyAddressSpace(child.as, parent.as)
	if err != nil {
		return err
	}

	env.sched.run(child)

	for i := 0; i < env.pages; i++ {
		err = env.system.Write(child.as, codeBase+uint64(i)*vm.PageSize,
			[]byte{0xaa})
		if err != nil {
			return err
		}

		env.advance()
	}

	env.sched.run(parent)

	err = env.mustRead(parent, codeBase, image)
	if err != nil {
		return err
	}

	err = env.mustRead(child, codeBase+vm.PageSize, []byte{0xaa})
	if err != nil {
		return err
	}

	fmt.Fprintf(env.out,
		"fork: child modified %d pages, parent unchanged\n", env.pages)

	return nil
}

// runPressure writes more anonymous pages than there are frames and reads
// them all back.
func runPressure(env *workloadEnv) (err error) {
	p, err := env.newProcess()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, env.exit(p)) }()

	for i := 0; i < env.pages; i++ {
		err = env.system.AllocateLazyPage(p.as, heapBase+uint64(i)*vm.PageSize,
			true, vm.PageTypeAnon, nil, nil)
		if err != nil {
			return err
		}
	}

	for i := 0; i < env.pages; i++ {
		err = env.system.Write(p.as, heapBase+uint64(i)*vm.PageSize,
			pattern(i, int(vm.PageSize)))
		if err != nil {
			return err
		}

		env.advance()
	}

	swapped := env.system.Swap().NumUsed()

	for i := 0; i < env.pages; i++ {
		err = env.mustRead(p, heapBase+uint64(i)*vm.PageSize,
			pattern(i, int(vm.PageSize)))
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(env.out,
		"pressure: %d pages through %d frames, %d swapped out\n",
		env.pages, env.system.Frames().NumFrames(), swapped)

	return nil
}
