// Command capi builds the C-ABI surface of the closed-loop pipeline as a
// shared library:
//
//	go build -buildmode=c-shared -o libclosedloop.so ./capi
//
// Hosts hold an opaque handle per processor and must serialize calls on it;
// the library performs no locking of its own. The double returned by
// run_chunk is allocated on the C heap and must be released with
// free_trigger_result, never with the host's own allocator.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"os"
	"runtime/cgo"
	"unsafe"

	"github.com/cwbudde/algo-closedloop/pipeline"
)

//export create_signal_processor_from_config
func create_signal_processor_from_config(path *C.char) unsafe.Pointer {
	if path == nil {
		fmt.Fprintln(os.Stderr, "create_signal_processor_from_config: nil config path")
		return nil
	}

	p, err := pipeline.NewFromFile(C.GoString(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "create_signal_processor_from_config: %v\n", err)
		return nil
	}

	return unsafe.Pointer(uintptr(cgo.NewHandle(p)))
}

//export delete_signal_processor
func delete_signal_processor(handle unsafe.Pointer) {
	if handle == nil {
		return
	}

	cgo.Handle(uintptr(handle)).Delete()
}

//export reset_index
func reset_index(handle unsafe.Pointer) {
	if handle == nil {
		return
	}

	processor(handle).ResetIndex()
}

// run_chunk processes length samples and returns a pointer to a single
// heap-allocated double holding the trigger timestamp, or NULL when no
// trigger fired. The caller owns the pointer and must release it with
// free_trigger_result.
//
//export run_chunk
func run_chunk(handle unsafe.Pointer, data *C.double, length C.size_t) *C.double {
	if handle == nil {
		return nil
	}

	p := processor(handle)

	if data == nil || length == 0 {
		p.RunChunk(nil)
		return nil
	}

	samples := unsafe.Slice((*float64)(unsafe.Pointer(data)), int(length))

	ts, ok := p.RunChunk(samples)
	if !ok {
		return nil
	}

	out := (*C.double)(C.malloc(C.size_t(unsafe.Sizeof(C.double(0)))))
	*out = C.double(ts)

	return out
}

//export free_trigger_result
func free_trigger_result(ptr *C.double) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

//export log_message
func log_message(handle unsafe.Pointer, text *C.char) {
	if handle == nil || text == nil {
		return
	}

	processor(handle).LogMessage(C.GoString(text))
}

func processor(handle unsafe.Pointer) *pipeline.SignalProcessor {
	return cgo.Handle(uintptr(handle)).Value().(*pipeline.SignalProcessor)
}

func main() {}
