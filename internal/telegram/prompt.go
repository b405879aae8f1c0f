package telegram

import (
	"sync"

	"github.com/suspectuso/green-coin/internal/greencoin"
)

// Step is the free-text answer a chat owes the bot
type Step int

const (
	StepNone Step = iota
	StepUsername
	StepRedeemAmount
)

func (s Step) String() string {
	switch s {
	case StepUsername:
		return "username"
	case StepRedeemAmount:
		return "redeem_amount"
	default:
		return "none"
	}
}

// Prompt is an open question in a chat. For StepRedeemAmount, Redeem holds
// the chosen wallet and redemption type; Amount is filled from the answer.
type Prompt struct {
	Step   Step
	Redeem greencoin.Redemption
}

// Prompts tracks the open question of every chat
type Prompts struct {
	mu      sync.Mutex
	pending map[int64]Prompt
}

func NewPrompts() *Prompts {
	return &Prompts{pending: make(map[int64]Prompt)}
}

// AskUsername waits for the chat's next message as a username
func (p *Prompts) AskUsername(chatID int64) {
	p.set(chatID, Prompt{Step: StepUsername})
}

// AskRedeemAmount waits for an amount to redeem from wallet as kind
func (p *Prompts) AskRedeemAmount(chatID int64, wallet, kind string) {
	p.set(chatID, Prompt{
		Step: StepRedeemAmount,
		Redeem: greencoin.Redemption{
			WalletType:     wallet,
			RedemptionType: kind,
		},
	})
}

// Pending returns the open question of a chat, StepNone if there is none
func (p *Prompts) Pending(chatID int64) Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[chatID]
}

// Clear drops the open question of a chat
func (p *Prompts) Clear(chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, chatID)
}

func (p *Prompts) set(chatID int64, pr Prompt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[chatID] = pr
}
