// voicereply 流式语音回复客户端
//
// 用法:
//
//	voicereply [flags] <command> [args]
//
// 命令:
//
//	normalize  录音转换为上传格式（16kHz 单声道 16bit WAV）
//	analyze    检测回复音频中的停顿
//	align      为回复音频生成字幕时间轴
//	talk       提交录音，播放服务端的语音回复并显示字幕
package main

import (
	"fmt"
	"os"

	"voicereply/cmd/voicereply/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
