//go:build android

package bridge

/*
#include <jni.h>
#include <stdlib.h>

static inline const char* jni_get_utf(JNIEnv* env, jstring s) {
    if (s == NULL) {
        return NULL;
    }
    return (*env)->GetStringUTFChars(env, s, NULL);
}

static inline void jni_release_utf(JNIEnv* env, jstring s, const char* chars) {
    if (s != NULL && chars != NULL) {
        (*env)->ReleaseStringUTFChars(env, s, chars);
    }
}
*/
import "C"
import (
	"github.com/VAHHABSY/SlipstreamApp/internal/cstr"
	"github.com/VAHHABSY/SlipstreamApp/internal/shim"
)

// borrow copies a Java string into Go and registers the JNI release with arena.
func borrow(arena *cstr.Arena, env *C.JNIEnv, s C.jstring) string {
	chars := C.jni_get_utf(env, s)
	if chars == nil {
		return ""
	}
	arena.Adopt(func() { C.jni_release_utf(env, s, chars) })
	return C.GoString(chars)
}

//export Java_net_typeblob_socks_NativeRunner_runSlipstream
func Java_net_typeblob_socks_NativeRunner_runSlipstream(env *C.JNIEnv, _ C.jobject, jLibPath, jDomain, jResolvers C.jstring, jPort C.jint, jLogPath C.jstring) C.jint {
	arena := cstr.NewArena()
	defer arena.Free()

	req := shim.Request{
		Locator:   borrow(arena, env, jLibPath),
		Domain:    borrow(arena, env, jDomain),
		Resolvers: borrow(arena, env, jResolvers),
		Port:      int(jPort),
		LogPath:   borrow(arena, env, jLogPath),
	}
	return C.jint(run(req))
}
