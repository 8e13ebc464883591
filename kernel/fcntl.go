package kernel

import (
	"bytes"
	"errors"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/wnxd/hnx"
)

const (
	O_ACCMODE = 0x3
	O_RDONLY  = 0
	O_WRONLY  = 1
	O_RDWR    = 2
	O_CREAT   = 0x40
	O_EXCL    = 0x80
	O_TRUNC   = 0x200
	O_APPEND  = 0x400

	STDIN_FILENO  = 0
	STDOUT_FILENO = 1
	STDERR_FILENO = 2

	maxIO = 1 << 20
)

// fcntl is the kernel-wide namespace: absolute paths naming file VMOs and
// directories. The namespace holds one reference to every file it names.
type fcntl struct {
	rw     sync.RWMutex
	files  map[string]*VMO
	dirs   map[string]struct{}
	inMu   sync.Mutex
	stdin  io.Reader
	outMu  sync.Mutex
	stdout io.Writer
}

func (f *fcntl) ctor() {
	f.files = make(map[string]*VMO)
	f.dirs = map[string]struct{}{"/": {}}
}

func (f *fcntl) dtor() {
	f.rw.Lock()
	files := f.files
	f.files = nil
	f.dirs = nil
	f.rw.Unlock()
	for _, v := range files {
		release(v)
	}
}

// cleanPath turns a user buffer into an absolute, clean path.
func cleanPath(p []byte) (string, error) {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	if len(p) == 0 || p[0] != '/' {
		return "", hnx.ErrInvalidArgs
	}
	return path.Clean(string(p)), nil
}

func (f *fcntl) checkParentLocked(name string) error {
	if f.dirs == nil {
		return hnx.ErrBadState
	}
	parent := path.Dir(name)
	if _, ok := f.dirs[parent]; ok {
		return nil
	}
	if _, ok := f.files[parent]; ok {
		return hnx.ErrInvalidArgs
	}
	return hnx.ErrNotFound
}

// lookup returns the file at name with a reference the caller owns.
func (f *fcntl) lookup(name string, flags int, maxSize uint64) (*VMO, error) {
	f.rw.Lock()
	defer f.rw.Unlock()
	if err := f.checkParentLocked(name); err != nil {
		return nil, err
	}
	if _, ok := f.dirs[name]; ok {
		return nil, hnx.ErrInvalidArgs
	}
	v, ok := f.files[name]
	switch {
	case ok && flags&(O_CREAT|O_EXCL) == O_CREAT|O_EXCL:
		return nil, hnx.ErrAlreadyExists
	case !ok && flags&O_CREAT == 0:
		return nil, hnx.ErrNotFound
	case !ok:
		v = newFileVMO(maxSize)
		retain(v)
		f.files[name] = v
	}
	if flags&O_TRUNC != 0 && flags&O_ACCMODE != O_RDONLY {
		v.truncate()
	}
	retain(v)
	return v, nil
}

func (f *fcntl) unlinkPath(name string) error {
	f.rw.Lock()
	if _, ok := f.dirs[name]; ok {
		f.rw.Unlock()
		return hnx.ErrInvalidArgs
	}
	v, ok := f.files[name]
	if !ok {
		f.rw.Unlock()
		return hnx.ErrNotFound
	}
	delete(f.files, name)
	f.rw.Unlock()
	release(v)
	return nil
}

func (f *fcntl) mkdirPath(name string) error {
	f.rw.Lock()
	defer f.rw.Unlock()
	if err := f.checkParentLocked(name); err != nil {
		return err
	}
	if _, ok := f.dirs[name]; ok {
		return hnx.ErrAlreadyExists
	}
	if _, ok := f.files[name]; ok {
		return hnx.ErrAlreadyExists
	}
	f.dirs[name] = struct{}{}
	return nil
}

func (f *fcntl) rmdirPath(name string) error {
	f.rw.Lock()
	defer f.rw.Unlock()
	if name == "/" {
		return hnx.ErrBadState
	}
	if _, ok := f.dirs[name]; !ok {
		if _, ok := f.files[name]; ok {
			return hnx.ErrInvalidArgs
		}
		return hnx.ErrNotFound
	}
	prefix := name + "/"
	for p := range f.dirs {
		if strings.HasPrefix(p, prefix) {
			return hnx.ErrBadState
		}
	}
	for p := range f.files {
		if strings.HasPrefix(p, prefix) {
			return hnx.ErrBadState
		}
	}
	delete(f.dirs, name)
	return nil
}

func (f *fcntl) consoleWrite(p []byte) (int, error) {
	f.outMu.Lock()
	defer f.outMu.Unlock()
	return f.stdout.Write(p)
}

func (f *fcntl) consoleRead(n uint64) ([]byte, error) {
	f.inMu.Lock()
	defer f.inMu.Unlock()
	buf := make([]byte, n)
	r, err := f.stdin.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:r], nil
}

type file struct {
	mu    sync.Mutex
	vmo   *VMO
	off   uint64
	flags int
}

func (fl *file) readable() bool {
	return fl.flags&O_ACCMODE != O_WRONLY
}

func (fl *file) writable() bool {
	return fl.flags&O_ACCMODE != O_RDONLY
}

// fdTable is a client's file descriptor table. Descriptors 0, 1 and 2 are
// the console and never appear in it.
type fdTable struct {
	rw  sync.Mutex
	fds map[int32]*file
	max int
}

func (t *fdTable) ctor(max int) {
	t.fds = make(map[int32]*file)
	t.max = max
}

func (t *fdTable) dtor() {
	t.rw.Lock()
	fds := t.fds
	t.fds = nil
	t.rw.Unlock()
	for _, fl := range fds {
		release(fl.vmo)
	}
}

// install takes over the reference the caller holds on fl.vmo.
func (t *fdTable) install(fl *file) (int32, error) {
	t.rw.Lock()
	defer t.rw.Unlock()
	if t.fds == nil {
		release(fl.vmo)
		return -1, hnx.ErrBadState
	}
	if len(t.fds) >= t.max {
		release(fl.vmo)
		return -1, hnx.ErrNoResources
	}
	fd := int32(STDERR_FILENO + 1)
	for t.fds[fd] != nil {
		fd++
	}
	t.fds[fd] = fl
	return fd, nil
}

func (t *fdTable) get(fd int32) (*file, error) {
	t.rw.Lock()
	defer t.rw.Unlock()
	if fl := t.fds[fd]; fl != nil {
		return fl, nil
	}
	return nil, hnx.ErrBadHandle
}

func (t *fdTable) remove(fd int32) error {
	t.rw.Lock()
	fl := t.fds[fd]
	delete(t.fds, fd)
	t.rw.Unlock()
	if fl == nil {
		return hnx.ErrBadHandle
	}
	release(fl.vmo)
	return nil
}

func (k *Kernel) write(c *Call) error {
	fd := int32(c.Arg(0))
	data := c.Data()
	switch fd {
	case STDIN_FILENO:
		return hnx.ErrBadHandle
	case STDOUT_FILENO, STDERR_FILENO:
		n, err := k.fcntl.consoleWrite(data)
		if err != nil {
			return err
		}
		c.Return(uint64(n))
		return nil
	}
	fl, err := c.Client.files.get(fd)
	if err != nil {
		return err
	}
	if !fl.writable() {
		return hnx.ErrBadHandle
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.flags&O_APPEND != 0 {
		fl.off = fl.vmo.Size()
	}
	n, err := fl.vmo.write(fl.off, data)
	if err != nil {
		return err
	}
	fl.off += uint64(n)
	c.Return(uint64(n))
	return nil
}

func (k *Kernel) read(c *Call) error {
	fd := int32(c.Arg(0))
	n := min(c.Arg(1), maxIO)
	var (
		buf []byte
		err error
	)
	switch fd {
	case STDIN_FILENO:
		buf, err = k.fcntl.consoleRead(n)
	case STDOUT_FILENO, STDERR_FILENO:
		return hnx.ErrBadHandle
	default:
		var fl *file
		fl, err = c.Client.files.get(fd)
		if err != nil {
			return err
		}
		if !fl.readable() {
			return hnx.ErrBadHandle
		}
		fl.mu.Lock()
		buf, err = fl.vmo.read(fl.off, n)
		fl.off += uint64(len(buf))
		fl.mu.Unlock()
	}
	if err != nil {
		return err
	}
	c.SetData(buf)
	c.Return(uint64(len(buf)))
	return nil
}

func (k *Kernel) openFile(c *Call, flags int) error {
	name, err := cleanPath(c.Data())
	if err != nil {
		return err
	}
	v, err := k.fcntl.lookup(name, flags, k.cfg.VMO.MaxSize)
	if err != nil {
		return err
	}
	fd, err := c.Client.files.install(&file{vmo: v, flags: flags})
	if err != nil {
		return err
	}
	c.Return(uint64(fd))
	return nil
}

func (k *Kernel) open(c *Call) error {
	return k.openFile(c, int(c.Arg(0)))
}

func (k *Kernel) creat(c *Call) error {
	return k.openFile(c, O_CREAT|O_WRONLY|O_TRUNC)
}

func (k *Kernel) close(c *Call) error {
	fd := int32(c.Arg(0))
	if fd >= STDIN_FILENO && fd <= STDERR_FILENO {
		return nil
	}
	return c.Client.files.remove(fd)
}

func (k *Kernel) unlink(c *Call) error {
	name, err := cleanPath(c.Data())
	if err != nil {
		return err
	}
	return k.fcntl.unlinkPath(name)
}

func (k *Kernel) mkdir(c *Call) error {
	name, err := cleanPath(c.Data())
	if err != nil {
		return err
	}
	return k.fcntl.mkdirPath(name)
}

func (k *Kernel) rmdir(c *Call) error {
	name, err := cleanPath(c.Data())
	if err != nil {
		return err
	}
	return k.fcntl.rmdirPath(name)
}
