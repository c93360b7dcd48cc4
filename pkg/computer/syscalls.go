package computer

import (
	"io"
	"strconv"

	"gocpu8/pkg/bus"
	"gocpu8/pkg/cpu"
)

// Host syscall numbers installed by ConsoleSyscalls.
const (
	SyscallPutChar    byte = 1 // write A as a character
	SyscallPutDecimal byte = 2 // write A in decimal
	SyscallPutString  byte = 3 // write the NUL terminated string at C:D
)

// maxString bounds SyscallPutString so a missing terminator cannot walk
// the whole address space.
const maxString = 1024

// ConsoleSyscalls returns host syscalls that print to out. The front-ends
// install them so programs can produce output without a console device.
func ConsoleSyscalls(out io.Writer) map[byte]SyscallFunc {
	return map[byte]SyscallFunc{
		SyscallPutChar: func(core *cpu.Core, _ *bus.Bus) error {
			_, err := out.Write([]byte{core.A})
			return err
		},
		SyscallPutDecimal: func(core *cpu.Core, _ *bus.Bus) error {
			_, err := io.WriteString(out, strconv.Itoa(int(core.A)))
			return err
		},
		SyscallPutString: func(core *cpu.Core, b *bus.Bus) error {
			var buf []byte
			addr := core.CD()
			for i := 0; i < maxString; i++ {
				c := b.Read(addr)
				if c == 0 {
					break
				}
				buf = append(buf, c)
				addr++
			}
			_, err := out.Write(buf)
			return err
		},
	}
}
