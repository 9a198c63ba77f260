//go:build cgo

package main

// #include "livegate.h"
import "C"
import (
	"unsafe"
)

//export livegate_open
func livegate_open(configJSON *C.char) C.int {
	goConfig := ""
	if configJSON != nil {
		goConfig = C.GoString(configJSON)
	}
	id, err := open(goConfig)
	if err != nil {
		return -1
	}
	return C.int(id)
}

//export livegate_get_info
func livegate_get_info(handle C.int, ref *C.char) C.LivegateResult {
	data, err := handles.lookup(int32(handle), C.GoString(ref))
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(data)
}

//export livegate_close
func livegate_close(handle C.int) C.LivegateResult {
	if err := handles.remove(int32(handle)); err != nil {
		return makeError(err.Error())
	}
	return makeResult("")
}

//export livegate_version
func livegate_version() C.LivegateResult {
	return makeResult(versionJSON())
}

//export livegate_result_free
func livegate_result_free(result C.LivegateResult) {
	if result.data != nil {
		C.free(unsafe.Pointer(result.data))
	}
	if result.error != nil {
		C.free(unsafe.Pointer(result.error))
	}
}

func makeResult(data string) C.LivegateResult {
	return C.LivegateResult{
		data:  C.CString(data),
		len:   C.int(len(data)),
		error: nil,
	}
}

func makeError(msg string) C.LivegateResult {
	return C.LivegateResult{
		data:  nil,
		len:   0,
		error: C.CString(msg),
	}
}
