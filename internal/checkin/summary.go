package checkin

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/result"
)

// WriteStepSummary appends a markdown report of run to the GitHub Actions
// step summary at path. Accounts in run must already carry display-safe
// names; balances and error messages are only written when privacy allows.
func WriteStepSummary(path string, run result.RunResult, privacy Privacy) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open step summary: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(renderSummary(run, privacy)); err != nil {
		return fmt.Errorf("write step summary: %w", err)
	}
	return nil
}

func renderSummary(run result.RunResult, privacy Privacy) string {
	var success, failed []result.AccountOutcome
	for _, a := range run.Accounts {
		if a.IsSuccess() {
			success = append(success, a)
		} else {
			failed = append(failed, a)
		}
	}
	s := run.Stats

	var b strings.Builder
	b.WriteString("## 🎯 AnyRouter 签到任务完成\n\n")
	switch {
	case s.FailedCount == 0 && s.SuccessCount > 0:
		b.WriteString("**✅ 所有账号全部签到成功！**\n\n")
	case s.SuccessCount > 0:
		b.WriteString("**⚠️ 部分账号签到成功**\n\n")
	default:
		b.WriteString("**❌ 所有账号签到失败**\n\n")
	}

	b.WriteString("### **详细信息**\n")
	fmt.Fprintf(&b, "- **执行时间**：%s\n", run.Timestamp)
	fmt.Fprintf(&b, "- **成功比例**：%d/%d\n", s.SuccessCount, s.TotalCount)
	fmt.Fprintf(&b, "- **失败比例**：%d/%d\n\n", s.FailedCount, s.TotalCount)

	if len(success) > 0 {
		b.WriteString("### 成功账号\n")
		if privacy.ShowSensitive {
			b.WriteString("| 账号 | 剩余（$） | 已用（$） |\n| :----- | :---- | :---- |\n")
			for _, a := range success {
				fmt.Fprintf(&b, "|%s|%s|%s|\n", a.Name, amount(a.Quota), amount(a.Used))
			}
		} else {
			b.WriteString("| 账号 | 状态 |\n| :----- | :---- |\n")
			for _, a := range success {
				fmt.Fprintf(&b, "|%s|✅ 签到成功|\n", a.Name)
			}
		}
		b.WriteString("\n")
	}

	if len(failed) > 0 {
		b.WriteString("### 失败账号\n")
		if privacy.ShowSensitive {
			b.WriteString("| 账号 | 错误原因 |\n| :----- | :----- |\n")
			for _, a := range failed {
				fmt.Fprintf(&b, "|%s|%s|\n", a.Name, orDefault(escapeCell(a.Error), "未知错误"))
			}
		} else {
			b.WriteString("| 账号 | 状态 |\n| :----- | :----- |\n")
			for _, a := range failed {
				fmt.Fprintf(&b, "|%s|❌ 签到失败|\n", a.Name)
			}
		}
	}
	b.WriteString("\n")
	return b.String()
}

func amount(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
