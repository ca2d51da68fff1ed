package repository_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	testingutil "github.com/linkcrm/lead-engine/testing"
	"github.com/linkcrm/lead-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadRepository(t *testing.T) {
	testingutil.TestWithDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewLeadRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		lead, err := fixtures.CreateTestLead(models.LeadSourceDouyin)
		require.NoError(t, err)
		_, err = fixtures.CreateTestFollowup(lead.LeadID, nil, "")
		require.NoError(t, err)

		t.Run("ByLeadID", func(t *testing.T) {
			found, err := repo.ByLeadID(ctx, lead.LeadID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, lead.LeadID, found.LeadID)
		})

		t.Run("ByLeadIDNotFound", func(t *testing.T) {
			found, err := repo.ByLeadID(ctx, "missing-lead")
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("FindActiveByPhoneExcludesSelf", func(t *testing.T) {
			matches, err := repo.FindActiveByPhone(ctx, *lead.Phone, lead.LeadID)
			require.NoError(t, err)
			assert.Empty(t, matches)

			matches, err = repo.FindActiveByPhone(ctx, *lead.Phone, "another-lead")
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, lead.LeadID, matches[0].LeadID)
		})

		t.Run("TerminalLeadsAreNotActive", func(t *testing.T) {
			closed, err := fixtures.CreateTestLead(models.LeadSourceWeixin)
			require.NoError(t, err)
			_, err = fixtures.CreateTestFollowup(closed.LeadID, nil, models.FollowupStageLost)
			require.NoError(t, err)

			matches, err := repo.FindActiveByPhone(ctx, *closed.Phone, "another-lead")
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	})
}

func TestFollowupRepository(t *testing.T) {
	testingutil.TestWithDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewFollowupRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		lead, err := fixtures.CreateTestLead(models.LeadSourceDouyin)
		require.NoError(t, err)
		_, err = fixtures.CreateTestFollowup(lead.LeadID, nil, "")
		require.NoError(t, err)

		t.Run("UpdateOwner", func(t *testing.T) {
			owner := int64(11)
			community := "翡翠湾"
			require.NoError(t, repo.UpdateOwner(ctx, lead.LeadID, &owner, &community))

			followup, err := repo.ByLeadID(ctx, lead.LeadID)
			require.NoError(t, err)
			require.NotNil(t, followup)
			require.NotNil(t, followup.InterviewsalesUserID)
			assert.Equal(t, owner, *followup.InterviewsalesUserID)
			require.NotNil(t, followup.ScheduledCommunity)
			assert.Equal(t, community, *followup.ScheduledCommunity)
		})

		t.Run("CountOpenByUsers", func(t *testing.T) {
			second, err := fixtures.CreateTestLead(models.LeadSourceWeixin)
			require.NoError(t, err)
			_, err = fixtures.CreateTestFollowup(second.LeadID, utils.ToPtr(int64(11)), "")
			require.NoError(t, err)

			closed, err := fixtures.CreateTestLead(models.LeadSourceWeixin)
			require.NoError(t, err)
			_, err = fixtures.CreateTestFollowup(closed.LeadID, utils.ToPtr(int64(22)), models.FollowupStageWon)
			require.NoError(t, err)

			since := utils.UTCNowAdd(-30 * 24 * time.Hour)
			counts, err := repo.CountOpenByUsers(ctx, []int64{11, 22}, since)
			require.NoError(t, err)
			assert.Equal(t, int64(2), counts[11])
			assert.Equal(t, int64(0), counts[22])
		})
	})
}

func TestRoundRobinCursorRepository(t *testing.T) {
	testingutil.TestWithDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewRoundRobinCursorRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()
		ruleID := uuid.New()

		t.Run("GetMissing", func(t *testing.T) {
			cursor, err := repo.Get(ctx, ruleID)
			require.NoError(t, err)
			assert.Nil(t, cursor)
		})

		t.Run("CreateAndAdvance", func(t *testing.T) {
			require.NoError(t, repo.Create(ctx, &models.RoundRobinCursor{
				RuleID:    ruleID,
				Position:  -1,
				UpdatedAt: utils.UTCNow(),
			}))

			ok, err := repo.CompareAndAdvance(ctx, ruleID, 0, 0)
			require.NoError(t, err)
			assert.True(t, ok)

			cursor, err := repo.Get(ctx, ruleID)
			require.NoError(t, err)
			require.NotNil(t, cursor)
			assert.Equal(t, 0, cursor.Position)
			assert.Equal(t, int64(1), cursor.Version)
		})

		t.Run("StaleVersionLosesTheRace", func(t *testing.T) {
			ok, err := repo.CompareAndAdvance(ctx, ruleID, 0, 1)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	})
}

func TestOrganizationRepository(t *testing.T) {
	testingutil.TestWithDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewOrganizationRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		org, err := fixtures.CreateTestOrganization("华东一区", utils.ToPtr(int64(11)), "翡翠湾", "江南府")
		require.NoError(t, err)

		t.Run("ByCommunity", func(t *testing.T) {
			found, err := repo.ByCommunity(ctx, "翡翠湾")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, org.ID, found.ID)
		})

		t.Run("ByCommunityNoFootprint", func(t *testing.T) {
			found, err := repo.ByCommunity(ctx, "云麓")
			require.NoError(t, err)
			assert.Nil(t, found)
		})
	})
}

func TestUserProfileRepository(t *testing.T) {
	testingutil.TestWithDB(t, func(testDB *testingutil.TestDB) {
		repo := repository.NewUserProfileRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		org, err := fixtures.CreateTestOrganization("华东一区", nil)
		require.NoError(t, err)

		_, err = fixtures.CreateTestUser(11, &org.ID)
		require.NoError(t, err)
		_, err = fixtures.CreateTestUser(22, &org.ID)
		require.NoError(t, err)

		inactive, err := fixtures.CreateTestUser(33, &org.ID)
		require.NoError(t, err)
		inactive.Status = models.UserStatusLeft
		require.NoError(t, testDB.DB.Save(inactive).Error)

		t.Run("ListActiveByIDsPreservesOrder", func(t *testing.T) {
			users, err := repo.ListActiveByIDs(ctx, []int64{22, 33, 11})
			require.NoError(t, err)
			require.Len(t, users, 2)
			assert.Equal(t, int64(22), users[0].ID)
			assert.Equal(t, int64(11), users[1].ID)
		})
	})
}
