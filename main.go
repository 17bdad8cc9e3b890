// 命令行入口：
// - 子命令见 internal/cli（build/stats/patch/generate/refresh/profile/...）
// - 配置默认读取 settings.yaml，rules.yaml 可选
package main

import "bamaco-content/internal/cli"

func main() {
	cli.Execute()
}
