package bot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/followup"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
	"github.com/raine/telegram-skinwise-bot/internal/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserID = int64(1)

type botApiMock struct {
	mock.Mock
}

func (m *botApiMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *botApiMock) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *botApiMock) GetFileDirectURL(fileID string) (string, error) {
	args := m.Called(fileID)
	return args.Get(0).(string), args.Error(1)
}

type testEnv struct {
	tg      *botApiMock
	bot     *Bot
	gateway *llmtest.Gateway
	store   *entitlement.MemoryStore
}

func setup(t *testing.T, initial entitlement.State) *testEnv {
	t.Helper()
	store := entitlement.NewMemoryStore()
	_, err := store.CreateProfile(context.Background(), UserKey(testUserID), initial)
	require.NoError(t, err)

	gw := &llmtest.Gateway{}
	guard := entitlement.NewGuard(store, entitlement.DefaultTrials, UserKey(99))
	tg := new(botApiMock)
	// Typing indicators are best effort.
	tg.On("Request", mock.Anything).Return(&tgbotapi.APIResponse{Ok: true}, nil).Maybe()

	b := NewBot(tg, Services{
		Guard:       guard,
		Analyzer:    analysis.NewOrchestrator(gw, guard),
		Ingredients: analysis.NewIngredientOrchestrator(gw, guard, false, 0),
		FollowUps:   followup.NewManager(gw, 0),
		OwnerUserID: UserKey(99),
	})
	t.Cleanup(b.Shutdown)

	return &testEnv{tg: tg, bot: b, gateway: gw, store: store}
}

func makeMessage(userId int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(userId, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func makePlainMessage(userId int64, text string) tgbotapi.MessageConfig {
	return tgbotapi.NewMessage(userId, text)
}

func makeUpdateWithMessageText(userId int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userId},
			Text: text,
		},
	}
}

func makeUpdateWithPhoto(userId int64, fileID string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From:  &tgbotapi.User{ID: userId},
			Photo: []tgbotapi.PhotoSize{{FileID: fileID, Width: 64, Height: 64, FileSize: 1024}},
		},
	}
}

func textContains(parts ...string) any {
	return mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		for _, p := range parts {
			if !strings.Contains(msg.Text, p) {
				return false
			}
		}
		return true
	})
}

// servePhoto serves a small PNG for every request and points fileID at it.
func servePhoto(t *testing.T, env *testEnv, fileID string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		img.Set(x, x, color.RGBA{R: 220, G: 80, B: 80, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	t.Cleanup(ts.Close)

	env.tg.On("GetFileDirectURL", fileID).Return(ts.URL+"/"+fileID+".png", nil)
}

func TestHandleUpdate_Start(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 3})

	env.tg.On("Send", textContains("Welcome to SkinWise", "3 free analyses")).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "/start"))
	env.tg.AssertExpectations(t)
}

func TestHandleUpdate_NewUserGetsProfile(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 3})

	env.tg.On("Send", makeMessage(2, formatStatus(entitlement.State{TrialCount: 3}))).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(2, "/status"))
	env.tg.AssertExpectations(t)

	state, err := env.store.GetProfile(context.Background(), UserKey(2))
	require.NoError(t, err)
	assert.Equal(t, entitlement.State{TrialCount: 3}, state)
}

func TestHandleUpdate_PhotoRunsAnalysis(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 3})
	servePhoto(t, env, "p1")

	env.tg.On("Send", makeMessage(testUserID, MsgAnalyzingImage)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", textContains("*Condition:* Eczema", "Mild", "Fragrance-free moisturizer", "2 free analyses")).
		Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(testUserID, MsgFollowUpHint)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testUserID, "p1"))
	env.tg.AssertExpectations(t)

	state, err := env.store.GetProfile(context.Background(), UserKey(testUserID))
	require.NoError(t, err)
	assert.Equal(t, 2, state.TrialCount)

	session := env.bot.state.getUserSession(testUserID)
	require.NotNil(t, session.LastResult())
	assert.Equal(t, "Eczema", session.LastResult().Condition)
	assert.Equal(t, "image/jpeg", env.gateway.Calls[0].Args[0].(llm.Image).MIMEType)
}

func TestHandleUpdate_ExhaustedUserIsNotDownloaded(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 0})

	env.tg.On("Send", makeMessage(testUserID, analysis.UserMessage(analysis.KindEntitlementExhausted))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testUserID, "p1"))
	env.tg.AssertExpectations(t)
	env.tg.AssertNotCalled(t, "GetFileDirectURL", mock.Anything)
	assert.Equal(t, 0, env.gateway.TotalCalls())
}

func TestHandleUpdate_AnalysisFailureShowsRetryMessage(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 1})
	servePhoto(t, env, "p1")
	env.gateway.AssessSeverityFunc = func(ctx context.Context, img llm.Image, condition string) (llm.Severity, error) {
		return "", llm.ErrTransport
	}

	env.tg.On("Send", makeMessage(testUserID, MsgAnalyzingImage)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(testUserID, analysis.UserMessage(analysis.KindSeverityAssessmentFailed))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testUserID, "p1"))
	env.tg.AssertExpectations(t)

	state, err := env.store.GetProfile(context.Background(), UserKey(testUserID))
	require.NoError(t, err)
	assert.Equal(t, 1, state.TrialCount)
	assert.Nil(t, env.bot.state.getUserSession(testUserID).LastResult())
}

func TestHandleUpdate_OversizedPhotoRejected(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 1})
	update := makeUpdateWithPhoto(testUserID, "big")
	update.Message.Photo[0].FileSize = 20 << 20

	env.tg.On("Send", makeMessage(testUserID, analysis.UserMessage(analysis.KindImageTooLarge))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), update)
	env.tg.AssertExpectations(t)
	assert.Equal(t, 0, env.gateway.TotalCalls())
}

func TestHandleUpdate_NonImageDocument(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 1})
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: testUserID},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf"},
	}}

	env.tg.On("Send", makeMessage(testUserID, analysis.UserMessage(analysis.KindInvalidImage))).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), update)
	env.tg.AssertExpectations(t)
}

func TestHandleUpdate_FollowUpQuestion(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 1})
	session := env.bot.state.getUserSession(testUserID)
	session.setResult(&analysis.Result{ID: "a1", Condition: "Eczema", Severity: llm.SeverityMild, Remedies: *llmtest.DefaultRemedies()})

	env.gateway.FollowUpFunc = func(ctx context.Context, req llm.FollowUpRequest) (string, error) {
		assert.Contains(t, req.DiagnosisContext, "Condition: Eczema")
		assert.Equal(t, "Can I use retinol?", req.Question)
		return "Introduce it slowly.", nil
	}

	env.tg.On("Send", makePlainMessage(testUserID, "Introduce it slowly.\n\n"+llm.Disclaimer)).
		Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "Can I use retinol?"))
	env.tg.AssertExpectations(t)
}

func TestHandleUpdate_FollowUpFallback(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 1})
	session := env.bot.state.getUserSession(testUserID)
	session.setResult(&analysis.Result{ID: "a1", Condition: "Eczema", Severity: llm.SeverityMild})

	env.gateway.FollowUpFunc = func(ctx context.Context, req llm.FollowUpRequest) (string, error) {
		return "", llm.ErrTransport
	}

	env.tg.On("Send", makePlainMessage(testUserID, followup.FallbackReply)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "Why?"))
	env.tg.AssertExpectations(t)
}

func TestHandleUpdate_TextWithoutAnalysis(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 1})

	env.tg.On("Send", makeMessage(testUserID, MsgStartPrompt)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "hello"))
	env.tg.AssertExpectations(t)
	assert.Equal(t, 0, env.gateway.TotalCalls())
}

func TestHandleUpdate_CheckRequiresDiagnosis(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 1})

	env.tg.On("Send", makeMessage(testUserID, MsgCheckNeedsDiagnosis)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "/check"))
	env.tg.AssertExpectations(t)
	assert.Equal(t, ImageModeAnalyze, env.bot.state.getUserSession(testUserID).Mode())
}

func TestHandleUpdate_CheckProduct(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 0})
	servePhoto(t, env, "label")
	session := env.bot.state.getUserSession(testUserID)
	session.setResult(&analysis.Result{ID: "a1", Condition: "Rosacea", Severity: llm.SeverityModerate})

	env.gateway.CheckSuitabilityFunc = func(ctx context.Context, condition string, img llm.Image) (*llm.SuitabilityReport, error) {
		return &llm.SuitabilityReport{
			IsGoodMatch: false,
			Summary:     "Contains alcohol.",
			IngredientAnalyses: []llm.IngredientAnalysis{
				{Name: "Alcohol Denat.", IsHarmful: true, Reason: "Can trigger flushing."},
			},
		}, nil
	}

	env.tg.On("Send", makeMessage(testUserID, formatReplyText(MsgSendCheckPhoto, "Rosacea"))).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(testUserID, formatReplyText(MsgCheckingProduct, "Rosacea"))).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", textContains("Not a good match", "Rosacea", "Alcohol Denat.")).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "/check"))
	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testUserID, "label"))
	env.tg.AssertExpectations(t)

	require.Equal(t, 1, env.gateway.CallCount("CheckSuitability"))
	assert.Equal(t, ImageModeAnalyze, session.Mode())
}

func TestHandleUpdate_Ingredients(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 0})
	servePhoto(t, env, "label")

	env.tg.On("Send", makeMessage(testUserID, MsgSendIngredientsPhoto)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(testUserID, MsgReadingIngredients)).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", textContains("Glycerin", "beneficial", "A simple, gentle formula.")).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "/ingredients"))
	env.bot.handleUpdateSync(context.Background(), makeUpdateWithPhoto(testUserID, "label"))
	env.tg.AssertExpectations(t)

	state, err := env.store.GetProfile(context.Background(), UserKey(testUserID))
	require.NoError(t, err)
	assert.Equal(t, 0, state.TrialCount)
}

func TestHandleUpdate_NewForgetsConversation(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 1})
	session := env.bot.state.getUserSession(testUserID)
	session.setResult(&analysis.Result{ID: "a1", Condition: "Eczema"})

	env.tg.On("Send", makeMessage(testUserID, MsgStartPrompt)).Return(tgbotapi.Message{}, nil).Twice()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "/new"))
	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "a question"))
	env.tg.AssertExpectations(t)

	assert.Nil(t, session.LastResult())
	assert.Equal(t, 0, env.gateway.CallCount("FollowUp"))
}

func TestHandleUpdate_AdminCommands(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 0})
	ownerID := int64(99)

	env.tg.On("Send", makeMessage(ownerID, formatReplyText(MsgAdminGranted, "tg:1"))).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(ownerID, formatReplyText(MsgAdminTrialsSet, "tg:1", 10))).Return(tgbotapi.Message{}, nil).Once()
	env.tg.On("Send", makeMessage(ownerID, MsgAdminInvalidTrials)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(ownerID, "/admin grant 1"))
	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(ownerID, "/admin trials 1 10"))
	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(ownerID, "/admin trials 1 -5"))
	env.tg.AssertExpectations(t)

	state, err := env.store.GetProfile(context.Background(), UserKey(testUserID))
	require.NoError(t, err)
	assert.Equal(t, entitlement.State{TrialCount: 10, HasPaid: true}, state)

	owner, err := env.store.GetProfile(context.Background(), UserKey(ownerID))
	require.NoError(t, err)
	assert.True(t, owner.Unlimited())
}

func TestHandleUpdate_AdminIgnoredForOthers(t *testing.T) {
	env := setup(t, entitlement.State{TrialCount: 0})

	env.tg.On("Send", makeMessage(testUserID, MsgStartPrompt)).Return(tgbotapi.Message{}, nil).Once()

	env.bot.handleUpdateSync(context.Background(), makeUpdateWithMessageText(testUserID, "/admin grant 1"))
	env.tg.AssertExpectations(t)

	state, err := env.store.GetProfile(context.Background(), UserKey(testUserID))
	require.NoError(t, err)
	assert.False(t, state.HasPaid)
}
