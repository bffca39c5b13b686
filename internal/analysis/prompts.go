package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"apkscope/pkg/models"
)

const permissionSystemPrompt = `You are a mobile security analyst. Analyze Android app permissions from a security and privacy standpoint.

For each permission:
- Explain its purpose in simple terms.
- Analyze how it can be abused or misused.
- Determine if it's sensitive or overprivileged.

Write your analysis in plain English, no JSON.`

const permissionExecSystemPrompt = `You are an Android security consultant. Based on the analysis you are given, write a plain-text executive summary.

Write 3 bullet points summarizing the overall security risks, user impact, and developer recommendations.
Avoid using technical terms or JSON.`

const apiSystemPrompt = `You are a senior Android malware analyst. Analyze static code summaries for potential threats.

Examine the behavior of the app and provide a DETAILED assessment, considering:

- Usage of sensitive APIs (sources/sinks)
- Reflection, dynamic loading, obfuscation
- Data exfiltration or command-and-control (C2) behavior
- Privacy violations or system access abuse

Report your assessment by calling the submit_assessment tool exactly once. Set:

- risk_level: "low", "medium" or "high"
- risk_type: e.g. ["obfuscation", "data_leak", "c2_behavior", "privilege_abuse"]
- key_indicators: concrete observations, e.g. "DexClassLoader used with encrypted path"
- summary: a few lines summarizing why this chunk is risky or not
- next_steps: concrete follow-ups, e.g. "Check for encrypted network traffic endpoints"

Do NOT answer in prose. Focus on being concise but precise.`

const apiExecSystemPrompt = `You are a senior Android malware analyst.`

func buildPermissionPrompt(chunk string) string {
	return fmt.Sprintf(`Analyze these permissions. At the end, provide:
- A summary of risky combinations (e.g., Internet + SMS)
- An overall risk rating
- Recommendations to developers or users

Permissions:
%s`, chunk)
}

func buildPermissionSummaryPrompt(combined string) string {
	return fmt.Sprintf("Analysis:\n%s", combined)
}

func buildAPIPrompt(chunk string) string {
	return fmt.Sprintf("Code under analysis:\n%s", chunk)
}

func buildAPISummaryPrompt(stats models.APIReportStats, indicators []string) string {
	statsJSON, _ := json.MarshalIndent(stats, "", "  ")
	return fmt.Sprintf(`Based on the risk assessment findings below, generate a detailed summary of the threats identified. Your output should be:

- A clear bullet-point list (5-10 points)
- Each point should explain the specific risk, source/sink usage, and any suspicious behavior.
- Highlight use of reflection, dynamic code loading, obfuscation, and potential data exfiltration.
- End with 2 suggestions for further manual review.

Do NOT include JSON or metadata. Just the summary in bullet format.

Statistics:
%s

Key Indicators:
%s`, statsJSON, strings.Join(indicators, "\n"))
}
