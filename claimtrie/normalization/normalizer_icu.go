//go:build use_icu_normalization
// +build use_icu_normalization

package normalization

/*
#cgo LDFLAGS: -licuuc -licui18n
#include <unicode/unorm2.h>
#include <unicode/ustring.h>
#include <unicode/utypes.h>
#include <stdlib.h>

static int32_t normalizeUTF16(const UChar* src, int32_t srcLen, UChar* dst, int32_t dstCap, UErrorCode* status) {
	const UNormalizer2* nfd = unorm2_getNFDInstance(status);
	if (U_FAILURE(*status)) {
		return 0;
	}
	int32_t n = unorm2_normalize(nfd, src, srcLen, dst, dstCap, status);
	return n;
}
*/
import "C"

import (
	"unicode/utf16"
	"unsafe"
)

// normalizeICU mirrors normalizeGo using the system ICU library's NFD
// normalizer followed by the same x/text case folding, kept only to cross-check normalizeGo on
// historical edge cases (normalizer_icu_test.go); it is not compiled into
// the default build.
func normalizeICU(name []byte) []byte {
	u16 := utf16.Encode([]rune(string(name)))
	if len(u16) == 0 {
		return []byte{}
	}

	src := (*C.UChar)(unsafe.Pointer(&u16[0]))
	dstCap := C.int32_t(len(u16)*4 + 16)
	dst := make([]uint16, dstCap)

	var status C.UErrorCode
	n := C.normalizeUTF16(src, C.int32_t(len(u16)), (*C.UChar)(unsafe.Pointer(&dst[0])), dstCap, &status)
	if status > 0 {
		// U_BUFFER_OVERFLOW_ERROR and similar: fall back to the Go
		// implementation rather than returning garbage.
		return normalizeGo(name)
	}

	decomposed := string(utf16.Decode(dst[:n]))
	return folder.Bytes([]byte(decomposed))
}
