package agent

import (
	"encoding/json"
	"fmt"

	"github.com/pulsar-neuron/gate/internal/model"
)

const bullTemplate = `BULL CASE TEMPLATE:
- If bulls can defend key levels, describe the path for continuation.
- Call out confirming evidence from trend, baselines, and derivatives.
- Highlight invalidation or conditions that would flip bias.`

const bearTemplate = `BEAR CASE TEMPLATE:
- If bears seize control, describe the breakdown path.
- Call out confirming evidence from trend, price action, and OI walls.
- Highlight invalidation or conditions that would flip bias.`

const decisionSchema = `Expected JSON keys:
{
  "action": "long|short|wait",
  "confidence": 0-100,
  "chosen_strategy": string|null,
  "entry": number,
  "risk_reward": number,
  "bull_case": [string, ...],
  "bear_case": [string, ...],
  "reasons": [string, ...]
}
Do not add extra keys.`

// BuildPrompt returns the deterministic prompt sent to the planner
// bridge. Hints are serialized verbatim so identical packs produce
// identical prompts.
func BuildPrompt(pack model.ContextPack) string {
	hints, _ := json.MarshalIndent(pack.Payload.Hints, "", "  ")

	return fmt.Sprintf(`Think like a professional intraday trader for %s.
Always test BULL case and BEAR case.
Use only supplied tool outputs; do not invent data.
If mixed/weak, answer WAIT.
Output JSON with {action, confidence, chosen_strategy, entry, risk_reward, bull_case, bear_case, reasons} only.

Context Hints:
%s

%s

%s

%s`, pack.Symbol, hints, bullTemplate, bearTemplate, decisionSchema)
}
