// voiceauth는 WAV 녹음으로 화자를 등록하고 인증하는 CLI다.
//
// 사용법:
//
//	voiceauth [--config voiceauth.yaml] [-v] <command>
//
// 명령:
//
//	enroll       - 녹음으로 사용자 목소리를 등록한다
//	authenticate - 녹음이 등록된 목소리와 같은 화자인지 판정한다
//	list         - 등록된 사용자를 나열한다
//	delete       - 사용자 등록을 지운다
//	interactive  - 메뉴에서 등록/인증을 반복한다
package main

import (
	"fmt"
	"os"

	"github.com/zrma/go-voiceprint/cmd/voiceauth/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}
