package contract

// NotificationKind classifies a notification intent.
type NotificationKind string

const (
	NotifyApprovalRequest  NotificationKind = "APPROVAL_REQUEST"
	NotifyApprovalResponse NotificationKind = "APPROVAL_RESPONSE"
	NotifyStatusChange     NotificationKind = "STATUS_CHANGE"
	NotifySigningProgress  NotificationKind = "SIGNING_PROGRESS"
	NotifyCommentMention   NotificationKind = "COMMENT_MENTION"
	NotifyRenewalReminder  NotificationKind = "RENEWAL_REMINDER"
)

// NotificationIntent describes a message the caller should deliver. The
// lifecycle service never sends anything itself.
type NotificationIntent struct {
	TargetUserID      string           `json:"target_user_id"`
	Kind              NotificationKind `json:"kind"`
	Message           string           `json:"message"`
	RelatedContractID string           `json:"related_contract_id"`
}

type notifier struct {
	actorID string
	intents []NotificationIntent
}

// add queues an intent unless the target is empty or is the acting user.
func (n *notifier) add(target string, kind NotificationKind, contractID, message string) {
	if target == "" || target == n.actorID {
		return
	}
	for _, existing := range n.intents {
		if existing.TargetUserID == target && existing.Kind == kind && existing.RelatedContractID == contractID && existing.Message == message {
			return
		}
	}
	n.intents = append(n.intents, NotificationIntent{
		TargetUserID:      target,
		Kind:              kind,
		Message:           message,
		RelatedContractID: contractID,
	})
}
