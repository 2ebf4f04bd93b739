package parley

// Wire event names. The names are the contract with the broker; the exact
// payload encoding is server-defined JSON.

// Client → server, request/response via Transport.Call.
const (
	EventSendMessage                = "send_message"
	EventSendCommand                = "send_command"
	EventSendNotificationToChat     = "send_notification_to_chat"
	EventCreateChat                 = "create_chat"
	EventJoinChat                   = "join_chat"
	EventExitChat                   = "exit_chat"
	EventDeleteChat                 = "delete_chat"
	EventPullMembersIntoChat        = "pull_members_into_chat"
	EventRemoveMemberFromChat       = "remove_member_from_chat"
	EventGetJoinedChats             = "get_joined_chats"
	EventGetCreatedChats            = "get_created_chats"
	EventGetChat                    = "get_chat"
	EventGetChatMembers             = "get_chat_members"
	EventGetMember                  = "get_member"
	EventGetMembers                 = "get_members"
	EventGetMemberByName            = "get_member_by_name"
	EventGetOnlineMembers           = "get_online_members"
	EventGetChatOnlineMembers       = "get_chat_online_members"
	EventLoadChatMessagesFromServer = "load_chat_messages_from_server"
	EventListenInChat               = "listen_in_chat"
	EventUnlistenInChat             = "unlisten_in_chat"
	EventGetListenInChats           = "get_listen_in_chats"
	EventRegisterChatManager        = "register_chat_manager"
)

// Server → client pushes, dispatched to registered handlers.
// EventNextSpeaker is symmetric: a manager emits it fire-and-forget and the
// broker relays it to the target member under the same name.
const (
	EventReceiveLoginResponse        = "receive_login_response"
	EventDisconnect                  = "disconnect"
	EventReceiveMessage              = "receive_message"
	EventReceiveCommand              = "receive_command"
	EventNextSpeaker                 = "next_speaker"
	EventReceiveNotificationFromChat = "receive_notification_from_chat"
)
