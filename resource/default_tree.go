package resource

import (
	"encoding/json"

	"github.com/hazuki-games/steelduel/server/game/ai"
)

// DefaultTreeName is the reserved name of the built-in duel tree.
const DefaultTreeName = "default"

// defaultTreeJSON is the built-in duel behavior: defend first, punish
// whiffed melee, then engage by distance, with idle as the terminal
// fallback so the selector never fails outright.
const defaultTreeJSON = `{
  "id": "root", "type": "Selector", "children": [
    {"id": "dodge", "type": "Sequence", "children": [
      {"id": "dodge-threat", "type": "CheckThreat"},
      {"id": "dodge-can", "type": "CheckCanDefend"},
      {"id": "dodge-roll", "type": "Probability", "params": {"chance": "CONFIG_DODGE"}},
      {"id": "dodge-act", "type": "ActionEvade", "params": {"isRainbow": false}}
    ]},
    {"id": "antimelee", "type": "Sequence", "children": [
      {"id": "antimelee-flag", "type": "CheckMeleeTargeted"},
      {"id": "antimelee-can", "type": "CheckCanDefend"},
      {"id": "antimelee-roll", "type": "Probability", "params": {"chance": "CONFIG_MELEE_DEFENSE"}},
      {"id": "antimelee-act", "type": "ActionEvade", "params": {"isRainbow": true}}
    ]},
    {"id": "bail", "type": "Sequence", "children": [
      {"id": "bail-whiff", "type": "CheckMeleeWhiff"},
      {"id": "bail-act", "type": "ActionEvade", "params": {"isRainbow": false}}
    ]},
    {"id": "melee", "type": "Sequence", "children": [
      {"id": "melee-can", "type": "CheckCanAct"},
      {"id": "melee-idle", "type": "CheckState", "params": {"state": "IDLE"}},
      {"id": "melee-dist", "type": "CheckDistance", "params": {"operator": "<", "value": "CONFIG_MELEE"}},
      {"id": "melee-boost", "type": "CheckBoost", "params": {"threshold": 30}},
      {"id": "melee-roll", "type": "Probability", "params": {"chance": "CONFIG_MELEE_AGGRESSION"}},
      {"id": "melee-act", "type": "ActionMelee"}
    ]},
    {"id": "shoot", "type": "Sequence", "children": [
      {"id": "shoot-can", "type": "CheckCanAct"},
      {"id": "shoot-idle", "type": "CheckState", "params": {"state": "IDLE"}},
      {"id": "shoot-cd", "type": "CheckShootCooldown"},
      {"id": "shoot-ammo", "type": "CheckAmmo"},
      {"id": "shoot-roll", "type": "Probability", "params": {"chance": "CONFIG_SHOOT"}},
      {"id": "shoot-act", "type": "ActionShoot"}
    ]},
    {"id": "close", "type": "Sequence", "children": [
      {"id": "close-can", "type": "CheckCanAct"},
      {"id": "close-idle", "type": "CheckState", "params": {"state": "IDLE"}},
      {"id": "close-dist", "type": "CheckDistance", "params": {"operator": ">", "value": 120}},
      {"id": "close-boost", "type": "CheckBoost", "params": {"threshold": 40}},
      {"id": "close-act", "type": "ActionDash"}
    ]},
    {"id": "reposition", "type": "Sequence", "children": [
      {"id": "repo-can", "type": "CheckCanAct"},
      {"id": "repo-idle", "type": "CheckState", "params": {"state": "IDLE"}},
      {"id": "repo-stale", "type": "CheckStateDuration", "params": {"min": 40}},
      {"id": "repo-boost", "type": "CheckBoost", "params": {"threshold": 50}},
      {"id": "repo-roll", "type": "Probability", "params": {"chance": 0.2}},
      {"id": "repo-act", "type": "ActionAscend"}
    ]},
    {"id": "fallback", "type": "ActionIdle"}
  ]
}`

// DefaultDefinition returns a fresh copy of the built-in duel tree.
func DefaultDefinition() *ai.Definition {
	var def ai.Definition
	// The constant is covered by tests; a decode failure here is a
	// programming error, and an empty definition degrades to a stub.
	_ = json.Unmarshal([]byte(defaultTreeJSON), &def)
	return &def
}
