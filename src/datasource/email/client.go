// client.go
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"mime"
	"net/smtp"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/jordan-wright/email"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"ShoppingBehavior/src/config"
)

/******************** 常量定义 ********************/
const (
	MaxFetchMessages   = 100            // 单次最大获取邮件数量，防止内存溢出
	FetchBufferSize    = 10             // 邮件获取通道缓冲区大小
	RecentMailDuration = 24 * time.Hour // 判定为"新邮件"的时间范围
)

/******************** 接口定义 ********************/

// MailService 邮件服务核心接口
type MailService interface {
	Connect() error
	Disconnect()
	FetchUnreadEmails() ([]*Email, error)
}

/******************** 数据结构 ********************/

// Email 邮件基础数据结构
type Email struct {
	UID         uint32        // 邮件唯一标识符(IMAP UID)
	Date        time.Time     // 邮件发送时间
	From        string        // 发件人信息(已解码)
	Subject     string        // 邮件主题(已解码)
	Attachments []*Attachment // 邮件附件列表
}

// Attachment 邮件附件数据结构
type Attachment struct {
	Filename string // 附件文件名(已解码)
	Content  []byte // 附件二进制内容
}

/******************** 邮件客户端实现 ********************/

// EmailClient IMAP邮件客户端，数据团队按月把数据集以附件形式发到这个邮箱
type EmailClient struct {
	server    string
	username  string
	password  string
	client    *client.Client
	mu        sync.Mutex
	connected bool
}

// NewEmailClient 创建邮件客户端实例
// 参数:
//   - server: 服务器地址(如"imap.qq.com:993")
//   - username: 邮箱账号
//   - password: 密码/授权码
func NewEmailClient(server, username, password string) *EmailClient {
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
	}
}

// Connect 建立安全连接(线程安全)
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 连接有效性检查
	if s.connected {
		if _, err := s.client.Capability(); err == nil {
			return nil
		}
		s.client.Logout()
		s.client = nil
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}

	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("登录失败: %w", err)
	}

	s.client = c
	s.connected = true
	return nil
}

// Disconnect 安全断开连接(线程安全)
func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
	s.connected = false
}

// FetchUnreadEmails 获取24小时内的未读邮件
func (s *EmailClient) FetchUnreadEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("未连接到邮件服务器")
	}

	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("选择邮箱失败: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-RecentMailDuration)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if len(ids) > MaxFetchMessages {
		ids = ids[:MaxFetchMessages]
	}

	return s.fetchMessages(ids)
}

// fetchMessages 获取指定ID的邮件内容
func (s *EmailClient) fetchMessages(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	var emails []*Email
	for msg := range messages {
		email, err := s.parseEmail(msg, section)
		if err != nil {
			log.Printf("解析邮件失败: %v", err)
			continue
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件内容失败: %w", err)
	}

	return emails, nil
}

/******************** 邮件解析相关 ********************/

// parseEmail 解析单个邮件
func (s *EmailClient) parseEmail(msg *imap.Message, section *imap.BodySectionName) (*Email, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("邮件正文为空")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("创建邮件阅读器失败: %w", err)
	}

	header := mr.Header
	date, _ := header.Date() // 日期解析错误不影响后续处理

	email := &Email{
		UID:     msg.Uid,
		Date:    date,
		From:    decodeHeader(header.Get("From")),
		Subject: decodeHeader(header.Get("Subject")),
	}

	if err := s.parseEmailParts(mr, email); err != nil {
		return nil, err
	}

	return email, nil
}

// parseEmailParts 解析邮件正文和附件
func (s *EmailClient) parseEmailParts(mr *mail.Reader, email *Email) error {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // 跳过解析失败的部分
		}

		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			if err := s.parseAttachment(h, p.Body, email); err != nil {
				log.Printf("解析附件失败: %v", err)
			}
		}
	}
	return nil
}

// parseAttachment 解析单个附件
func (s *EmailClient) parseAttachment(h *mail.AttachmentHeader, body io.Reader, email *Email) error {
	filename, err := h.Filename()
	if err != nil || filename == "" {
		return fmt.Errorf("无效的附件名")
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("读取附件内容失败: %w", err)
	}

	email.Attachments = append(email.Attachments, &Attachment{
		Filename: decodeHeader(filename),
		Content:  buf.Bytes(),
	})
	return nil
}

/******************** 报告发送 ********************/

// SendReport 把生成好的仪表盘作为附件发回给报告接收人
func SendReport(c *config.Config, attachmentPath, body string) error {
	from := c.SendEmail.Username

	e := email.NewEmail()
	e.From = fmt.Sprintf("Shopping Behavior <%s>", from)
	e.To = []string{c.SendEmail.To}
	e.Subject = c.SendEmail.Subject
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := os.Stat(attachmentPath); err != nil {
			return fmt.Errorf("附件文件不存在: %s", attachmentPath)
		}
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return fmt.Errorf("附件添加失败: %w", err)
		}
	}

	// 确保服务器地址包含端口
	smtpAddr := c.SendEmail.Server
	if !strings.Contains(smtpAddr, ":") {
		smtpAddr += ":465" // 默认 SSL 端口
	}
	host := strings.Split(smtpAddr, ":")[0]

	if err := e.SendWithTLS(
		smtpAddr,
		smtp.PlainAuth("", from, c.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	); err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, smtpAddr)
	}
	return nil
}

/******************** 工具函数 ********************/

// decodeHeader 解码邮件头特殊编码
// 支持格式: =?charset?encoding?encoded-text?=
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{
		CharsetReader: charsetReader,
	}

	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header // 解码失败返回原始内容
	}
	return decoded
}

// charsetReader 字符集转换器
// 支持GBK/GB2312自动转UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	charset = strings.ToLower(charset)
	switch charset {
	case "gbk", "gb2312":
		return transform.NewReader(input, simplifiedchinese.GBK.NewDecoder()), nil
	default:
		return input, nil
	}
}
